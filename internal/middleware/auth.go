package middleware

import (
	"strings"

	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const userLocal = "user"

// RequireAuth resolves the bearer API key to a user. Returns 401 with the
// standard error format when the key is missing or unknown.
func RequireAuth(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		key := strings.TrimPrefix(header, "Bearer ")
		if key == "" || key == header {
			return response.Unauthorized(c, "Unauthorized")
		}

		var user domain.User
		if err := db.WithContext(c.Context()).Where("api_key = ?", key).First(&user).Error; err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(userLocal, &user)
		return c.Next()
	}
}

// GetUser returns the authenticated user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) *domain.User {
	if u, ok := c.Locals(userLocal).(*domain.User); ok {
		return u
	}
	return nil
}
