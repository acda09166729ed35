package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/viewmodel"
)

const mainLayout = "layouts/main"

// render draws a page inside the main layout. data may be nil.
func render(c *fiber.Ctx, view, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Layout"] = viewmodel.NewLayout(c, view, title, flash.Get(c))
	return c.Render(view, data, mainLayout)
}

// renderError draws the error page with status.
func renderError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	flash.Set(c, fiber.Map{"type": "error", "message": message})
	return render(c, "errors/error", "Error", fiber.Map{"Status": status, "Message": message})
}

// pageError answers a failed service call on an HTML route.
func pageError(c *fiber.Ctx, err error) error {
	status, _ := classify(err)
	return renderError(c, status, errorMessage(err))
}

// csrfToken returns the token of the request for forms in partials.
func csrfToken(c *fiber.Ctx) string {
	token, _ := c.Locals("csrf").(string)
	return token
}
