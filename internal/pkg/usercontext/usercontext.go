package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	Actor      actor.Actor `json:"actor"`
	Username   string      `json:"username"`
	IsLoggedIn bool        `json:"is_logged_in"`
	IsAdmin    bool        `json:"is_admin"`
}

// New builds the context of an authenticated actor.
func New(a actor.Actor) UserContext {
	return UserContext{
		Actor:      a,
		Username:   a.Name,
		IsLoggedIn: a.IsAuthenticated(),
		IsAdmin:    a.Role == actor.RoleAdmin,
	}
}

// Set stores uc and the legacy locals read by templates.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
	if uc.IsLoggedIn {
		c.Locals(KeyUsername, uc.Username)
		c.Locals(KeyRole, string(uc.Actor.Role))
	}
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// GetActor returns the acting principal; anonymous when not logged in.
func GetActor(c *fiber.Ctx) actor.Actor {
	return GetUserContext(c).Actor
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).Actor.UserID
}
