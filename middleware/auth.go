package middleware

import (
	"context"
	"errors"
	"strings"

	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const identityKey = "identity"

// IdentityResolver turns a bearer access token into the caller's identity.
type IdentityResolver interface {
	IdentityFromToken(ctx context.Context, accessToken string) (services.Identity, error)
}

// Authenticate resolves an optional "Authorization: Bearer <access>" header.
// Requests without the header continue anonymously; a header that does not
// resolve is rejected with 401 on every route.
func Authenticate(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header must be: Bearer <token>",
			})
		}

		identity, err := resolver.IdentityFromToken(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				zap.L().Debug("Rejected bearer token", zap.String("path", c.Path()), zap.Error(err))
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Given token not valid for any token type",
				})
			}
			zap.L().Error("Failed to resolve identity", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		SetIdentity(c, identity)
		return c.Next()
	}
}

// RequireAuth rejects anonymous callers.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IdentityFrom(c).Authenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication credentials were not provided",
			})
		}
		return c.Next()
	}
}

// SetIdentity stores the caller on the request.
func SetIdentity(c *fiber.Ctx, identity services.Identity) {
	c.Locals(identityKey, identity)
}

// IdentityFrom returns the caller, or the anonymous identity.
func IdentityFrom(c *fiber.Ctx) services.Identity {
	if identity, ok := c.Locals(identityKey).(services.Identity); ok {
		return identity
	}
	return services.Identity{}
}
