package viewmodel

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// Layout is the data every page template receives under "Layout".
type Layout struct {
	Page          string
	Title         string
	FromProtected bool
	IsError       bool
	Msg           fiber.Map
	Username      string
	Avatar        string
	Role          string
	IsAdmin       bool
	IsStaff       bool
	CSRF          string
	URL           string
}

// NewLayout fills the layout from the request's user context.
func NewLayout(c *fiber.Ctx, page, title string, msg fiber.Map) Layout {
	uc := usercontext.GetUserContext(c)
	csrf, _ := c.Locals("csrf").(string)
	return Layout{
		Page:          page,
		Title:         title,
		FromProtected: uc.IsLoggedIn,
		IsError:       msg != nil && msg["type"] == "error",
		Msg:           msg,
		Username:      uc.Username,
		Avatar:        AvatarURL(uc.Actor.Email, 32),
		Role:          string(uc.Actor.Role),
		IsAdmin:       uc.IsAdmin,
		IsStaff:       uc.Actor.IsStaff(),
		CSRF:          csrf,
		URL:           c.OriginalURL(),
	}
}
