package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// APIKeyLookup resolves hashed API keys. The user repository implements it.
type APIKeyLookup interface {
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	TouchAPIKey(settingsID uint, at time.Time) error
}

// APIKeyUsage counts requests per API key settings row.
type APIKeyUsage interface {
	Add(ctx context.Context, settingsID uint) error
}

// APIKeyAuthMiddleware authenticates provider integrations carrying an API key
// in X-API-Key or an Authorization bearer header. Requests without a key fall
// through to the session actor. usage may be nil.
func APIKeyAuthMiddleware(lookup APIKeyLookup, usage APIKeyUsage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Next()
		}

		user, settings, err := lookup.GetByAPIKeyHash(models.HashAPIKey(apiKey))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apiKeyError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid API key")
			}
			log.Errorf("[APIKey] lookup failed: %v", err)
			return apiKeyError(c, fiber.StatusInternalServerError, "internal_server_error", "API key verification failed")
		}
		if !user.IsActive() {
			return apiKeyError(c, fiber.StatusForbidden, "forbidden", "User inactive")
		}

		role, ok := actor.ParseRole(user.Role)
		if !ok {
			return apiKeyError(c, fiber.StatusForbidden, "forbidden", "Unsupported account role")
		}

		if err := lookup.TouchAPIKey(settings.ID, time.Now()); err != nil {
			log.Warnf("[APIKey] failed to update usage timestamp for user %d: %v", user.ID, err)
		}
		if usage != nil {
			if err := usage.Add(c.UserContext(), settings.ID); err != nil {
				log.Warnf("[APIKey] failed to count request for user %d: %v", user.ID, err)
			}
		}

		a := actor.Actor{Role: role, UserID: user.ID, Name: user.Name, Email: user.Email}
		if user.ProviderID != nil {
			a.ProviderID = *user.ProviderID
		}
		usercontext.Set(c, usercontext.New(a))
		return c.Next()
	}
}

func apiKeyError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": code, "message": msg})
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
