package accountdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/types/errs"
	"golang.org/x/net/publicsuffix"
)

// stringService serves free-form string attributes: a straight passthrough
// to the key-value store.
type stringService struct {
	attrType entity.AttributeType
	registry *registry.Registry
	data     repo.AccountDataRepo
}

func (s *stringService) fetch(ctx context.Context, reqs []dto.UserKeysRequest) ([]dto.UserData, error) {
	bulk := make([]dto.UserMetaKeys, 0, len(reqs))
	for _, req := range reqs {
		keys := make([]string, 0, len(req.Keys))
		for _, kr := range req.Keys {
			keys = append(keys, kr.Key)
		}
		bulk = append(bulk, dto.UserMetaKeys{UserID: req.UserID, Keys: keys})
	}

	rows, err := s.data.BulkGet(ctx, bulk)
	if err != nil {
		return nil, fmt.Errorf("stringService - fetch - s.data.BulkGet: %w", err)
	}

	results := make([]dto.UserData, 0, len(rows))
	for _, row := range rows {
		data := make(map[string]any, len(row.Data))
		for key, value := range row.Data {
			data[key] = value
		}
		results = append(results, dto.UserData{UserID: row.UserID, Data: data})
	}

	return results, nil
}

func (s *stringService) update(ctx context.Context, userID string, data map[string]string) error {
	err := s.data.Update(ctx, userID, data)
	if err != nil {
		return fmt.Errorf("stringService - update - s.data.Update: %w", err)
	}

	return nil
}

// urlService fetches like a string attribute but sanitizes on write: a bare
// registrable domain is coerced to an http URL, anything else that fails a
// strict URL parse is rejected. Empty string clears the field.
type urlService struct {
	stringService
}

func (s *urlService) update(ctx context.Context, userID string, data map[string]string) error {
	sanitized := make(map[string]string, len(data))

	for key, value := range data {
		normalized, err := normalizeURL(key, value)
		if err != nil {
			return err
		}
		sanitized[key] = normalized
	}

	err := s.data.Update(ctx, userID, sanitized)
	if err != nil {
		return fmt.Errorf("urlService - update - s.data.Update: %w", err)
	}

	return nil
}

func normalizeURL(key, value string) (string, error) {
	if value == "" {
		return "", nil
	}

	if u, err := url.Parse(value); err == nil && u.Scheme != "" && u.Host != "" {
		return value, nil
	}

	if isRegistrableDomain(value) {
		return "http://" + value, nil
	}

	return "", errs.Validationf(`"%s" must be valid domain or url.`, key)
}

// isRegistrableDomain reports whether host is a bare domain under a known
// ICANN public suffix (e.g. "test.com", but not "thisisnotavalidtld.cmo").
func isRegistrableDomain(host string) bool {
	host = strings.ToLower(host)

	if host == "" || !strings.Contains(host, ".") {
		return false
	}

	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
		for _, c := range label {
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
				return false
			}
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return false
	}

	_, err := publicsuffix.EffectiveTLDPlusOne(host)

	return err == nil
}
