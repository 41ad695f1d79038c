package repo

import (
	"context"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
)

type (
	// AccountDataRepo is the sparse per-user key-value store backing every
	// attribute type. Missing keys are simply absent from results.
	AccountDataRepo interface {
		Get(ctx context.Context, userID string, keys []string) (map[string]string, error)
		BulkGet(ctx context.Context, reqs []dto.UserMetaKeys) ([]dto.UserMetaData, error)
		Update(ctx context.Context, userID string, data map[string]string) error
		DeleteByPrefix(ctx context.Context, userID, rootKey string) error
	}

	// ExchangeKeysRepo stores encrypted exchange credentials.
	ExchangeKeysRepo interface {
		Add(ctx context.Context, userID, exchangeID, token, secret string) error
		Get(ctx context.Context, userID string, exchangeIDs []string, decrypt bool) ([]entity.ExchangeKey, error)
		Delete(ctx context.Context, userID, exchangeID string) error
	}

	// FileStore puts derivative bytes into public blob storage and reads
	// image originals back by their public URL.
	FileStore interface {
		Save(ctx context.Context, data []byte, path string) (string, error)
		Fetch(ctx context.Context, url string) ([]byte, error)
		Probe(ctx context.Context, url string) (width, height int, err error)
	}

	// UploadSigner issues a constrained direct-upload authorization.
	UploadSigner interface {
		Sign(ctx context.Context, userID, key string) (*dto.SignedUpload, error)
	}

	// Encrypter is the KMS-backed encrypt/decrypt primitive.
	Encrypter interface {
		Encrypt(ctx context.Context, plaintext string) ([]byte, error)
		Decrypt(ctx context.Context, ciphertext []byte) (string, error)
	}
)
