package infrastructure

import (
	"context"

	"github.com/traderhub/account-service/internal/entity"
)

type (
	// EventEmitter publishes cross-cutting notifications. Delivery failures
	// are the caller's to log; they must never fail the triggering operation.
	EventEmitter interface {
		Emit(ctx context.Context, eventType string, payload any) error
		Close() error
	}

	// ImageResizer renders a derivative from original image bytes. Cropped
	// selects cover fit; otherwise the image is scaled to fit inside the box.
	ImageResizer interface {
		Resize(ctx context.Context, data []byte, width, height int, cropped bool, ext string) ([]byte, error)
	}

	// AuthVerifier turns a bearer token into a request principal.
	AuthVerifier interface {
		Verify(ctx context.Context, token string) (entity.AuthPrincipal, error)
	}

	// IdentityProvider is the admin-side identity lookup.
	IdentityProvider interface {
		GetUsers(ctx context.Context, ids []string) ([]*entity.UserIdentity, error)
		GetByUsername(ctx context.Context, username string) (*entity.UserIdentity, error)
	}
)
