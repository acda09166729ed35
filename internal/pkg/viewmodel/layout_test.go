package viewmodel

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

func TestNewLayout(t *testing.T) {
	app := fiber.New()
	var got Layout
	app.Get("/", func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.New(actor.Actor{Role: actor.RoleModerator, UserID: 2, Name: "mod", Email: " Mod@Example.com "}))
		c.Locals("csrf", "tok")
		got = NewLayout(c, "admin", "Dashboard", fiber.Map{"type": "error", "message": "x"})
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.True(t, got.FromProtected)
	assert.True(t, got.IsStaff)
	assert.False(t, got.IsAdmin)
	assert.True(t, got.IsError)
	assert.Equal(t, "MODERATOR", got.Role)
	assert.Equal(t, "mod", got.Username)
	assert.Equal(t, "tok", got.CSRF)
	assert.Equal(t, AvatarURL("mod@example.com", 32), got.Avatar)
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t, "", AvatarURL("  ", 32))
	assert.Equal(t,
		"https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346?s=64&d=identicon",
		AvatarURL(" MyEmailAddress@example.com ", 0))
}
