package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/FeeBook/app/controllers"
	"github.com/ManuelReschke/FeeBook/internal/pkg/oauth"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	auth := controllers.GetAuthController()

	// Consumer sign-in through Google. Goth keeps its own state cookie, so
	// these routes sit outside the CSRF group.
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get(oauth.CallbackPath(":provider"), auth.HandleOAuthCallback)
}
