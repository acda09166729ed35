package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/session"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// UserContextMiddleware restores the actor from the session for every request.
func UserContextMiddleware(c *fiber.Ctx) error {
	// Goth keeps its own session on /auth/*; touching ours there collides.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}
	store := session.GetSessionStore()
	if store == nil {
		usercontext.Set(c, usercontext.New(actor.Actor{}))
		return c.Next()
	}
	sess, err := store.Get(c)
	if err != nil {
		usercontext.Set(c, usercontext.New(actor.Actor{}))
		return c.Next()
	}

	a, _ := session.ActorFrom(sess)
	usercontext.Set(c, usercontext.New(a))
	return c.Next()
}
