// Package signupload authorizes direct browser uploads for image attributes.
package signupload

import (
	"context"
	"fmt"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/types/errs"
)

type UseCase struct {
	registry *registry.Registry
	signer   repo.UploadSigner
}

func New(reg *registry.Registry, signer repo.UploadSigner) *UseCase {
	return &UseCase{
		registry: reg,
		signer:   signer,
	}
}

// Sign issues a signed upload form for one image attribute of the calling
// user. Only the owner may upload to their own attributes.
func (uc *UseCase) Sign(ctx context.Context, auth entity.AuthPrincipal, userID, key string) (*dto.SignedUpload, error) {
	if userID == "" || key == "" {
		return nil, errs.Validationf(`"User ID" and "Key" are required`)
	}

	def, ok := uc.registry.DefinitionOf(key)
	if !ok {
		return nil, errs.Validationf(`"%s" is not a registered attribute`, key)
	}
	if def.Type != entity.TypeImage {
		return nil, errs.Validationf(`"%s" is not an image attribute`, key)
	}

	if !auth.IsOwner(userID) {
		return nil, fmt.Errorf("SignUploadUseCase - Sign: %w", errs.ErrPermissionDenied)
	}

	signed, err := uc.signer.Sign(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("SignUploadUseCase - Sign - uc.signer.Sign: %w", err)
	}

	return signed, nil
}
