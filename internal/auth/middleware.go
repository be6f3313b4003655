package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenVerifier is satisfied by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token, method string) (bool, error)
}

const bearerPrefix = "Bearer "

// RequireAuth rejects requests whose bearer token may not call method.
func RequireAuth(verifier TokenVerifier, method string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing Authorization header"})
		}
		if len(header) <= len(bearerPrefix) || !strings.HasPrefix(header, bearerPrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Authorization header"})
		}

		allowed, err := verifier.Verify(c.UserContext(), header[len(bearerPrefix):], method)
		if err != nil {
			log.Error("Token verification failed", zap.String("method", method), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid token"})
		}
		return c.Next()
	}
}
