package middleware

import (
	"crypto/subtle"

	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey admits requests carrying key in X-Admin-Key. An empty key
// disables the route.
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return response.Error(c, "Route disabled", fiber.StatusNotFound, nil)
		}
		got := c.Get(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
