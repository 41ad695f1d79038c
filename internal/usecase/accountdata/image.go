package accountdata

import (
	"context"
	"fmt"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/types/errs"
	"golang.org/x/sync/errgroup"
)

// imageService serves image attributes. Each variant is stored as flattened
// url/width/height rows; a requested size that has no stored derivative is
// rendered from the original on first read and persisted.
type imageService struct {
	registry *registry.Registry
	data     repo.AccountDataRepo
	files    repo.FileStore
	resizer  infrastructure.ImageResizer
	logger   logger.Interface
}

func (s *imageService) fetch(ctx context.Context, reqs []dto.UserKeysRequest) ([]dto.UserData, error) {
	bulk := make([]dto.UserMetaKeys, 0, len(reqs))
	for _, req := range reqs {
		var keys []string
		for _, kr := range req.Keys {
			keys = append(keys, imageMetaKeys(imageRootKey(kr.Key, kr.Size))...)
			if kr.Size != "" {
				keys = append(keys, imageMetaKeys(imageRootKey(kr.Key, ""))...)
			}
		}
		bulk = append(bulk, dto.UserMetaKeys{UserID: req.UserID, Keys: keys})
	}

	rows, err := s.data.BulkGet(ctx, bulk)
	if err != nil {
		return nil, fmt.Errorf("imageService - fetch - s.data.BulkGet: %w", err)
	}

	rowsByUser := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		rowsByUser[row.UserID] = row.Data
	}

	results := make([]dto.UserData, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = s.assembleUser(gCtx, req, rowsByUser[req.UserID])

			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// assembleUser turns one user's flattened rows into ImageData values,
// regenerating missing derivatives. A regeneration failure degrades that
// key to the original-only view instead of failing the whole read.
func (s *imageService) assembleUser(ctx context.Context, req dto.UserKeysRequest, rows map[string]string) dto.UserData {
	data := make(map[string]any, len(req.Keys))

	for _, kr := range req.Keys {
		img := deserializeImage(rows, kr)
		if img == nil {
			continue
		}

		if kr.Size != "" && img.URL == "" && img.Orig != nil {
			regenerated, err := s.regenerate(ctx, req.UserID, kr.Key, kr.Size, img.Orig)
			if err != nil {
				s.logger.Error(err, "imageService - assembleUser - s.regenerate")
			} else {
				regenerated.Size = kr.Size
				regenerated.Orig = img.Orig
				img = regenerated
			}
		}

		data[kr.Key] = img
	}

	return dto.UserData{UserID: req.UserID, Data: data}
}

// regenerate renders, stores and persists one derivative from the original.
func (s *imageService) regenerate(ctx context.Context, userID, key, size string, orig *entity.ImageData) (*entity.ImageData, error) {
	def, ok := s.registry.DefinitionOf(key)
	if !ok {
		return nil, errs.Validationf(`"%s" is not a registered attribute`, key)
	}

	spec, ok := def.Sizes[size]
	if !ok {
		return nil, errs.Validationf(`"%s" is not a valid size of "%s"`, size, key)
	}

	origBytes, err := s.files.Fetch(ctx, orig.URL)
	if err != nil {
		return nil, fmt.Errorf("imageService - regenerate - s.files.Fetch: %w", err)
	}

	objectPath, ext, err := derivativePath(orig.URL, spec.Width, spec.Height)
	if err != nil {
		return nil, fmt.Errorf("imageService - regenerate - derivativePath: %w", err)
	}

	resized, err := s.resizer.Resize(ctx, origBytes, spec.Width, spec.Height, spec.Cropped, ext)
	if err != nil {
		return nil, fmt.Errorf("imageService - regenerate - s.resizer.Resize: %w", err)
	}

	derivativeURL, err := s.files.Save(ctx, resized, objectPath)
	if err != nil {
		return nil, fmt.Errorf("imageService - regenerate - s.files.Save: %w", err)
	}

	derivative := entity.ImageData{URL: derivativeURL, Width: spec.Width, Height: spec.Height}

	err = s.data.Update(ctx, userID, serializeImage(key, size, derivative))
	if err != nil {
		return nil, fmt.Errorf("imageService - regenerate - s.data.Update: %w", err)
	}

	return &derivative, nil
}

// update persists image variants, probing each URL for its dimensions.
func (s *imageService) update(ctx context.Context, userID string, data map[string]dto.ImageUpdate) error {
	rows := map[string]string{}

	for key, upd := range data {
		def, ok := s.registry.DefinitionOf(key)
		if !ok {
			return errs.Validationf(`"%s" is not a registered attribute`, key)
		}
		if def.Type != entity.TypeImage {
			return errs.Validationf(`"%s" is not an image attribute`, key)
		}
		if upd.Size != "" {
			if _, ok := def.Sizes[upd.Size]; !ok {
				return errs.Validationf(`"%s" is not a valid size of "%s"`, upd.Size, key)
			}
		}

		width, height, err := s.files.Probe(ctx, upd.URL)
		if err != nil {
			return fmt.Errorf("imageService - update - s.files.Probe: %w", err)
		}

		serialized := serializeImage(key, upd.Size, entity.ImageData{URL: upd.URL, Width: width, Height: height})
		for k, v := range serialized {
			rows[k] = v
		}
	}

	if err := s.data.Update(ctx, userID, rows); err != nil {
		return fmt.Errorf("imageService - update - s.data.Update: %w", err)
	}

	return nil
}

// delete removes the original and every stored derivative of one attribute.
func (s *imageService) delete(ctx context.Context, userID, key string) error {
	def, ok := s.registry.DefinitionOf(key)
	if !ok {
		return errs.Validationf(`"%s" is not a registered attribute`, key)
	}
	if def.Type != entity.TypeImage {
		return errs.Validationf(`"%s" is not an image attribute`, key)
	}

	if err := s.data.DeleteByPrefix(ctx, userID, key); err != nil {
		return fmt.Errorf("imageService - delete - s.data.DeleteByPrefix: %w", err)
	}

	return nil
}
