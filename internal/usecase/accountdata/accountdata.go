// Package accountdata implements the typed account-attribute engine: a
// dispatcher that classifies requested keys by their registered type and
// delegates to the matching type service.
package accountdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/types/errs"
	"golang.org/x/sync/errgroup"
)

// fetcher is the read side of a type service.
type fetcher interface {
	fetch(ctx context.Context, reqs []dto.UserKeysRequest) ([]dto.UserData, error)
}

type UseCase struct {
	registry *registry.Registry
	strings  *stringService
	urls     *urlService
	images   *imageService

	logger logger.Interface
}

func New(
	reg *registry.Registry,
	data repo.AccountDataRepo,
	files repo.FileStore,
	resizer infrastructure.ImageResizer,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		registry: reg,
		strings:  &stringService{attrType: entity.TypeString, registry: reg, data: data},
		urls:     &urlService{stringService{attrType: entity.TypeURL, registry: reg, data: data}},
		images:   &imageService{registry: reg, data: data, files: files, resizer: resizer, logger: l},
		logger:   l,
	}
}

// fetcherFor maps an attribute type to its service. The switch is
// exhaustive over entity.AttributeType.
func (uc *UseCase) fetcherFor(t entity.AttributeType) fetcher {
	switch t {
	case entity.TypeString:
		return uc.strings
	case entity.TypeURL:
		return uc.urls
	case entity.TypeImage:
		return uc.images
	}

	// unreachable: requests are validated against the registry first
	return nil
}

// Get fetches attributes for many users. All keys are validated against the
// registry before any type service runs; per-type batches are fetched
// concurrently and merged back per user preserving the request order.
func (uc *UseCase) Get(ctx context.Context, reqs []dto.UserKeysRequest) ([]dto.UserData, error) {
	if err := uc.validateGet(reqs); err != nil {
		return nil, err
	}

	batches := splitByType(uc.registry, reqs)

	var mu sync.Mutex
	results := make(map[entity.AttributeType][]dto.UserData, len(batches))

	g, gCtx := errgroup.WithContext(ctx)
	for t, batch := range batches {
		t, batch := t, batch
		g.Go(func() error {
			res, err := uc.fetcherFor(t).fetch(gCtx, batch)
			if err != nil {
				return fmt.Errorf("AccountDataUseCase - Get - fetch %s: %w", t, err)
			}

			mu.Lock()
			results[t] = res
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeByUser(reqs, results), nil
}

// Update writes scalar attributes. Only the owner may write; no role grants
// write access to another user's attributes. Image attributes are not
// writable through this path, they change via the upload workflow.
func (uc *UseCase) Update(ctx context.Context, auth entity.AuthPrincipal, userID string, data map[string]string) error {
	if userID == "" {
		return errs.Validationf(`"User ID" is required`)
	}

	split := map[entity.AttributeType]map[string]string{}
	for key, value := range data {
		def, ok := uc.registry.DefinitionOf(key)
		if !ok {
			return errs.Validationf(`"%s" is not a registered attribute`, key)
		}

		switch def.Type {
		case entity.TypeString, entity.TypeURL:
			if split[def.Type] == nil {
				split[def.Type] = map[string]string{}
			}
			split[def.Type][key] = value
		case entity.TypeImage:
			return errs.Validationf(`"%s" is an image attribute and must be set through upload`, key)
		}
	}

	if !auth.IsOwner(userID) {
		return fmt.Errorf("AccountDataUseCase - Update: %w", errs.ErrPermissionDenied)
	}

	if fields := split[entity.TypeString]; len(fields) > 0 {
		if err := uc.strings.update(ctx, userID, fields); err != nil {
			return fmt.Errorf("AccountDataUseCase - Update - uc.strings.update: %w", err)
		}
	}

	if fields := split[entity.TypeURL]; len(fields) > 0 {
		if err := uc.urls.update(ctx, userID, fields); err != nil {
			return fmt.Errorf("AccountDataUseCase - Update - uc.urls.update: %w", err)
		}
	}

	return nil
}

// UpdateImage stores a new URL (plus probed dimensions) for image
// attribute variants. Internal: called by the upload workflow, not gated
// on a principal.
func (uc *UseCase) UpdateImage(ctx context.Context, userID string, data map[string]dto.ImageUpdate) error {
	if userID == "" {
		return errs.Validationf(`"User ID" is required`)
	}

	return uc.images.update(ctx, userID, data)
}

// DeleteImage removes the original and every derivative of an image
// attribute in one prefix delete.
func (uc *UseCase) DeleteImage(ctx context.Context, userID, key string) error {
	if userID == "" {
		return errs.Validationf(`"User ID" is required`)
	}

	return uc.images.delete(ctx, userID, key)
}

// ReplaceImage handles a completed upload: purge the attribute's rows, then
// store the new original. Derivative sizes regenerate lazily on read.
func (uc *UseCase) ReplaceImage(ctx context.Context, userID, key, url string) error {
	if userID == "" || url == "" {
		return errs.Validationf(`"User ID" and "URL" are required`)
	}

	if err := uc.images.delete(ctx, userID, key); err != nil {
		return fmt.Errorf("AccountDataUseCase - ReplaceImage - uc.images.delete: %w", err)
	}

	err := uc.images.update(ctx, userID, map[string]dto.ImageUpdate{key: {URL: url}})
	if err != nil {
		return fmt.Errorf("AccountDataUseCase - ReplaceImage - uc.images.update: %w", err)
	}

	return nil
}

func (uc *UseCase) validateGet(reqs []dto.UserKeysRequest) error {
	for _, req := range reqs {
		if req.UserID == "" {
			return errs.Validationf(`"User ID" is required`)
		}

		for _, kr := range req.Keys {
			def, ok := uc.registry.DefinitionOf(kr.Key)
			if !ok {
				return errs.Validationf(`"%s" is not a registered attribute`, kr.Key)
			}

			if kr.Size == "" {
				continue
			}

			if def.Type != entity.TypeImage {
				return errs.Validationf(`"%s" does not support sizes`, kr.Key)
			}

			if _, ok := def.Sizes[kr.Size]; !ok {
				return errs.Validationf(`"%s" is not a valid size of "%s"`, kr.Size, kr.Key)
			}
		}
	}

	return nil
}

// splitByType buckets every (user, key) tuple into per-type batches,
// keeping the users' request order within each batch.
func splitByType(reg *registry.Registry, reqs []dto.UserKeysRequest) map[entity.AttributeType][]dto.UserKeysRequest {
	batches := map[entity.AttributeType][]dto.UserKeysRequest{}

	for _, req := range reqs {
		grouped := map[entity.AttributeType][]dto.KeyRequest{}
		var order []entity.AttributeType

		for _, kr := range req.Keys {
			def, _ := reg.DefinitionOf(kr.Key)
			if grouped[def.Type] == nil {
				order = append(order, def.Type)
			}
			grouped[def.Type] = append(grouped[def.Type], kr)
		}

		for _, t := range order {
			batches[t] = append(batches[t], dto.UserKeysRequest{UserID: req.UserID, Keys: grouped[t]})
		}
	}

	return batches
}

// mergeByUser recombines per-type results into one data object per user,
// in the order users first appear in the request.
func mergeByUser(reqs []dto.UserKeysRequest, results map[entity.AttributeType][]dto.UserData) []dto.UserData {
	index := map[string]int{}
	merged := make([]dto.UserData, 0, len(reqs))

	for _, req := range reqs {
		if _, ok := index[req.UserID]; ok {
			continue
		}
		index[req.UserID] = len(merged)
		merged = append(merged, dto.UserData{UserID: req.UserID, Data: map[string]any{}})
	}

	for _, typeResults := range results {
		for _, res := range typeResults {
			i, ok := index[res.UserID]
			if !ok {
				continue
			}
			for key, value := range res.Data {
				merged[i].Data[key] = value
			}
		}
	}

	return merged
}
