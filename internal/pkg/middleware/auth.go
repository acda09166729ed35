package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireRole guards portal pages. Anonymous visitors go to the login page of
// the first listed role, signed-in users of another role go home.
func RequireRole(roles ...actor.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := usercontext.GetActor(c)
		if !a.IsAuthenticated() {
			return c.Redirect(loginPathFor(roles), fiber.StatusSeeOther)
		}
		if !a.Is(roles...) {
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// RequireAPIRole guards JSON endpoints and answers 401/403 instead of redirecting.
func RequireAPIRole(roles ...actor.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := usercontext.GetActor(c)
		if !a.IsAuthenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "unauthorized",
				"message": "login required",
			})
		}
		if !a.Is(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "forbidden",
				"message": "not allowed for this account",
			})
		}
		return c.Next()
	}
}

func loginPathFor(roles []actor.Role) string {
	if len(roles) > 0 && roles[0] == actor.RoleConsumer {
		return "/consumer/login"
	}
	return "/login"
}
