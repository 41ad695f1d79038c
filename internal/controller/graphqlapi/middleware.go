package graphqlapi

import (
	"context"
	"strings"

	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p entity.AuthPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the request principal, or a zero (anonymous)
// principal when the request carried no valid token.
func principalFrom(ctx context.Context) entity.AuthPrincipal {
	p, _ := ctx.Value(principalKey{}).(entity.AuthPrincipal)

	return p
}

// newAuthMiddleware resolves the bearer token into a principal. An absent
// or invalid token downgrades the request to anonymous instead of
// rejecting it; per-operation permission checks happen in the usecases.
func newAuthMiddleware(verifier infrastructure.AuthVerifier, l logger.Interface) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Next()
		}

		principal, err := verifier.Verify(c.UserContext(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			l.Warn("graphqlapi - authMiddleware - verifier.Verify: %v", err)

			return c.Next()
		}

		c.SetUserContext(withPrincipal(c.UserContext(), principal))

		return c.Next()
	}
}
