package keycloak

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Refresh the client access token this long before it actually expires.
const _tokenExpiryMargin = 10 * time.Second

// IdentityService looks users up through the Keycloak admin API using a
// process-wide client-credentials token. Concurrent callers may race to
// refresh the token; refresh is idempotent and any valid token wins.
type IdentityService struct {
	serverURL    string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       logger.Interface

	mu              sync.Mutex
	accessToken     string
	accessTokenExp  time.Time
	refreshToken    string
	refreshTokenExp time.Time
}

func NewIdentityService(serverURL, realm, clientID, clientSecret string, l logger.Interface) *IdentityService {
	return &IdentityService{
		serverURL:    serverURL,
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   http.DefaultClient,
		logger:       l,
	}
}

// GetUsers resolves identities concurrently. A failed lookup yields a nil
// entry at that id's position; a failed role lookup yields empty roles.
func (s *IdentityService) GetUsers(ctx context.Context, ids []string) ([]*entity.UserIdentity, error) {
	identities := make([]*entity.UserIdentity, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			identity, err := s.getUser(gCtx, id)
			if err != nil {
				s.logger.Error(err, "IdentityService - GetUsers - s.getUser")

				return nil
			}

			identity.Roles = s.getRoles(gCtx, identity.ID)
			identities[i] = identity

			return nil
		})
	}

	_ = g.Wait()

	return identities, nil
}

func (s *IdentityService) GetByUsername(ctx context.Context, username string) (*entity.UserIdentity, error) {
	endpoint := fmt.Sprintf("%s/admin/realms/%s/users?username=%s&exact=true",
		s.serverURL, s.realm, url.QueryEscape(username))

	var matches []entity.UserIdentity
	if err := s.adminGet(ctx, endpoint, &matches); err != nil {
		return nil, fmt.Errorf("IdentityService - GetByUsername - s.adminGet: %w", err)
	}

	if len(matches) == 0 {
		return nil, nil
	}

	identity := matches[0]
	identity.Roles = s.getRoles(ctx, identity.ID)

	return &identity, nil
}

func (s *IdentityService) getUser(ctx context.Context, id string) (*entity.UserIdentity, error) {
	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s", s.serverURL, s.realm, id)

	var identity entity.UserIdentity
	if err := s.adminGet(ctx, endpoint, &identity); err != nil {
		return nil, fmt.Errorf("IdentityService - getUser - s.adminGet: %w", err)
	}

	return &identity, nil
}

func (s *IdentityService) getRoles(ctx context.Context, id string) []string {
	if id == "" {
		return []string{}
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm", s.serverURL, s.realm, id)

	var mappings []struct {
		Name string `json:"name"`
	}
	if err := s.adminGet(ctx, endpoint, &mappings); err != nil {
		s.logger.Error(err, "IdentityService - getRoles - s.adminGet")

		return []string{}
	}

	roles := make([]string, 0, len(mappings))
	for _, m := range mappings {
		roles = append(roles, m.Name)
	}

	return roles
}

func (s *IdentityService) adminGet(ctx context.Context, endpoint string, out any) error {
	token, err := s.clientAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("IdentityService - adminGet - s.clientAccessToken: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("IdentityService - adminGet - http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("IdentityService - adminGet - s.httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("IdentityService - adminGet - unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("IdentityService - adminGet - json.Decode: %w", err)
	}

	return nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

func (s *IdentityService) clientAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.accessToken != "" && now.Before(s.accessTokenExp) {
		return s.accessToken, nil
	}

	var tok *tokenResponse
	var err error

	if s.refreshToken != "" && now.Before(s.refreshTokenExp) {
		tok, err = s.requestToken(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {s.clientID},
			"client_secret": {s.clientSecret},
			"refresh_token": {s.refreshToken},
		}, false)
		if err != nil {
			s.logger.Error(err, "IdentityService - clientAccessToken - refresh grant")
		}
	}

	if tok == nil {
		tok, err = s.requestToken(ctx, url.Values{
			"grant_type": {"client_credentials"},
		}, true)
		if err != nil {
			return "", fmt.Errorf("IdentityService - clientAccessToken - client_credentials grant: %w", err)
		}
	}

	s.accessToken = tok.AccessToken
	s.accessTokenExp = now.Add(time.Duration(tok.ExpiresIn)*time.Second - _tokenExpiryMargin)
	s.refreshToken = tok.RefreshToken
	s.refreshTokenExp = now.Add(time.Duration(tok.RefreshExpiresIn)*time.Second - _tokenExpiryMargin)

	return s.accessToken, nil
}

func (s *IdentityService) requestToken(ctx context.Context, form url.Values, basicAuth bool) (*tokenResponse, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.serverURL, s.realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("IdentityService - requestToken - http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicAuth {
		credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
		req.Header.Set("Authorization", "Basic "+credentials)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IdentityService - requestToken - s.httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IdentityService - requestToken - unexpected status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("IdentityService - requestToken - json.Decode: %w", err)
	}

	return &tok, nil
}
