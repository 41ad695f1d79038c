package usecase

import (
	"context"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
)

type (
	// AccountDataUseCase routes attribute reads/writes to the matching
	// type service and merges per-user results.
	AccountDataUseCase interface {
		Get(ctx context.Context, reqs []dto.UserKeysRequest) ([]dto.UserData, error)
		Update(ctx context.Context, auth entity.AuthPrincipal, userID string, data map[string]string) error
		UpdateImage(ctx context.Context, userID string, data map[string]dto.ImageUpdate) error
		DeleteImage(ctx context.Context, userID, key string) error
		ReplaceImage(ctx context.Context, userID, key, url string) error
	}

	// ExchangeKeysUseCase is the credential vault.
	ExchangeKeysUseCase interface {
		Add(ctx context.Context, auth entity.AuthPrincipal, input dto.AddExchangeKeysInput) error
		Get(ctx context.Context, auth entity.AuthPrincipal, userID string, exchangeIDs []string) ([]entity.ExchangeKey, error)
		Delete(ctx context.Context, auth entity.AuthPrincipal, userID, exchangeID string) error
	}

	// SignUploadUseCase issues direct-upload authorizations.
	SignUploadUseCase interface {
		Sign(ctx context.Context, auth entity.AuthPrincipal, userID, key string) (*dto.SignedUpload, error)
	}
)
