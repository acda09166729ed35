package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// APIController serves the JSON endpoints under /api/v1.
type APIController struct {
	d *Deps
}

func NewAPIController(d *Deps) *APIController {
	return &APIController{d: d}
}

type feePlanRequest struct {
	FeePlan feeplan.PlanInput `json:"feePlan"`
}

type feePlanIDRequest struct {
	FeePlanID     uint `json:"feePlanId"`
	IsOfflinePaid bool `json:"isOfflinePaid"`
	ProviderID    uint `json:"providerId"`
}

// providerScope resolves the provider a request acts on. Providers always act
// on their own; staff must name one.
func providerScope(a actor.Actor, requested uint) uint {
	if a.Role == actor.RoleProvider {
		return a.ProviderID
	}
	return requested
}

// HandleGetMemberFeePlans returns a member with its sorted fee plans.
func (ac *APIController) HandleGetMemberFeePlans(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	providerID := providerScope(a, parseID(c.Query("providerId")))
	memberID := parseID(c.Query("memberId"))
	if providerID == 0 || memberID == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "providerId and memberId are required")
	}
	member, err := ac.d.FeePlans.GetMemberWithPlans(c.UserContext(), a, providerID, memberID)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, member)
}

// HandleCreateFeePlan creates one plan from {feePlan: {...}}.
func (ac *APIController) HandleCreateFeePlan(c *fiber.Ctx) error {
	var req feePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	a := usercontext.GetActor(c)
	req.FeePlan.ID = 0
	req.FeePlan.ProviderID = providerScope(a, req.FeePlan.ProviderID)
	plan, err := ac.d.FeePlans.Create(c.UserContext(), a, req.FeePlan)
	if err != nil {
		return apiError(c, err)
	}
	return created(c, plan)
}

// HandleUpdateFeePlan updates the plan named by feePlan.id.
func (ac *APIController) HandleUpdateFeePlan(c *fiber.Ctx) error {
	var req feePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if req.FeePlan.ID == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "feePlan.id is required")
	}
	a := usercontext.GetActor(c)
	req.FeePlan.ProviderID = providerScope(a, req.FeePlan.ProviderID)
	plan, err := ac.d.FeePlans.Update(c.UserContext(), a, req.FeePlan)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, plan)
}

// HandleDeleteFeePlan deletes the plan named by {feePlanId}.
func (ac *APIController) HandleDeleteFeePlan(c *fiber.Ctx) error {
	var req feePlanIDRequest
	if err := c.BodyParser(&req); err != nil || req.FeePlanID == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "feePlanId is required")
	}
	if err := ac.d.FeePlans.Delete(c.UserContext(), usercontext.GetActor(c), req.FeePlanID); err != nil {
		return apiError(c, err)
	}
	return ok(c, nil)
}

// HandleMarkPaid toggles the offline-paid flag of a plan.
func (ac *APIController) HandleMarkPaid(c *fiber.Ctx) error {
	var req feePlanIDRequest
	if err := c.BodyParser(&req); err != nil || req.FeePlanID == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "feePlanId is required")
	}
	plan, err := ac.d.FeePlans.MarkPaid(c.UserContext(), usercontext.GetActor(c), req.FeePlanID, req.IsOfflinePaid)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, plan)
}

// HandleGetPaymentView returns {feePlan, member, provider} for the pay page.
func (ac *APIController) HandleGetPaymentView(c *fiber.Ctx) error {
	id := parseID(c.Params("id"))
	if id == 0 {
		return fail(c, fiber.StatusBadRequest, "bad_request", "Fee plan ID is required")
	}
	view, err := ac.d.FeePlans.GetPaymentView(c.UserContext(), id)
	if err != nil {
		return apiError(c, err)
	}
	a := usercontext.GetActor(c)
	if a.Role == actor.RoleProvider && !a.CanManageProvider(view.Provider.ID) {
		return apiError(c, actor.ErrForbidden)
	}
	return ok(c, view)
}
