package usercontext

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

func TestGetActorDefaultsToAnonymous(t *testing.T) {
	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error {
		assert.False(t, IsLoggedIn(c))
		assert.Equal(t, actor.Actor{}, GetActor(c))
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/provider", func(c *fiber.Ctx) error {
		Set(c, New(actor.Actor{Role: actor.RoleProvider, UserID: 3, ProviderID: 7, Name: "Asha"}))
		a := GetActor(c)
		assert.Equal(t, uint(7), a.ProviderID)
		assert.True(t, IsLoggedIn(c))
		assert.False(t, GetUserContext(c).IsAdmin)
		assert.Equal(t, "Asha", GetUserContext(c).Username)
		assert.Equal(t, uint(3), GetUserID(c))
		assert.Equal(t, true, c.Locals(KeyFromProtected))
		assert.Equal(t, "PROVIDER", c.Locals(KeyRole))
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, path := range []string{"/anon", "/provider"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}
