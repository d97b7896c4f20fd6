package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"gridbase-backend/internal/engine"
)

// AuthMiddleware returns a Fiber middleware that validates bearer tokens
// and attaches the caller's Identity to the request.
func AuthMiddleware(issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		ident, err := issuer.Verify(parts[1])
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("user", ident)
		return c.Next()
	}
}

// RequireAdmin checks the authenticated identity has the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, ok := c.Locals("user").(*Identity)
		if !ok || ident == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !ident.IsAdmin() {
			return engine.ForbiddenError("Admin access required")
		}
		return c.Next()
	}
}

// GetUser extracts the authenticated Identity from a Fiber context.
func GetUser(c *fiber.Ctx) *Identity {
	ident, _ := c.Locals("user").(*Identity)
	return ident
}
