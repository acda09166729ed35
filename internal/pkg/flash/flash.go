package flash

import (
	"github.com/gofiber/fiber/v2"
	sflash "github.com/sujit-baniya/flash"
)

// Flash message key in locals
const FlashKey = "flash"

// Set sets a flash message for the current render
func Set(c *fiber.Ctx, message fiber.Map) {
	c.Locals(FlashKey, message)
}

// Get returns the message set for this render, falling back to the one
// carried over by the previous redirect.
func Get(c *fiber.Ctx) fiber.Map {
	if msg, ok := c.Locals(FlashKey).(fiber.Map); ok {
		return msg
	}
	msg := sflash.Get(c)
	if len(msg) == 0 {
		return nil
	}
	return msg
}

// Error redirects to path with an error toast.
func Error(c *fiber.Ctx, path, message string) error {
	return sflash.WithError(c, fiber.Map{"type": "error", "message": message}).Redirect(path)
}

// Success redirects to path with a success toast.
func Success(c *fiber.Ctx, path, message string) error {
	return sflash.WithSuccess(c, fiber.Map{"type": "success", "message": message}).Redirect(path)
}
