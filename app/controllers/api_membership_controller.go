package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// HandleProviderSearch finds approved providers. The gen parameter is echoed
// so the page can drop responses to superseded queries.
func (ac *APIController) HandleProviderSearch(c *fiber.Ctx) error {
	gen, _ := strconv.ParseUint(c.Query("gen"), 10, 64)
	results, err := ac.d.Memberships.SearchProviders(c.UserContext(),
		c.Query("category"), c.Query("region"), c.Query("search"), queryInt(c, "limit", 0))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, fiber.Map{"providers": results, "gen": gen})
}

// HandleMemberByUniqueID resolves a member id entered by a consumer.
func (ac *APIController) HandleMemberByUniqueID(c *fiber.Ctx) error {
	m, err := ac.d.Memberships.FindMemberByUniqueID(c.UserContext(), parseID(c.Query("providerId")), c.Query("uniqueId"))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, fiber.Map{"member": m})
}

// HandleClaimMembership links the consumer to a member. A repeated claim
// answers 409 with the existing membership id.
func (ac *APIController) HandleClaimMembership(c *fiber.Ctx) error {
	var req membership.ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	m, err := ac.d.Memberships.Claim(c.UserContext(), usercontext.GetActor(c), req)
	if err != nil {
		return apiError(c, err)
	}
	return created(c, m)
}

// HandleConsumerMemberships lists the consumer's memberships.
func (ac *APIController) HandleConsumerMemberships(c *fiber.Ctx) error {
	cards, err := ac.d.Memberships.ListForConsumer(c.UserContext(), usercontext.GetActor(c))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, fiber.Map{"memberships": cards})
}

// HandleMembershipSchedule returns a membership's fee plans.
func (ac *APIController) HandleMembershipSchedule(c *fiber.Ctx) error {
	view, err := ac.d.Memberships.Schedule(c.UserContext(), usercontext.GetActor(c), parseID(c.Params("id")))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, view)
}
