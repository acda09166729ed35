package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/docstore"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
)

const msgInternal = "Something went wrong. Please try again."

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": code, "message": message})
}

func failWithData(c *fiber.Ctx, status int, code, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": code, "message": message, "data": data})
}

// apiError answers a service error with its status, code and payload.
func apiError(c *fiber.Ctx, err error) error {
	var conflict *membership.ConflictError
	if errors.As(err, &conflict) {
		return failWithData(c, fiber.StatusConflict, "conflict", "Membership already exists",
			fiber.Map{"membershipId": conflict.MembershipID})
	}
	var planErr *feeplan.ValidationError
	if errors.As(err, &planErr) {
		return failWithData(c, fiber.StatusUnprocessableEntity, "validation_failed", planErr.Error(),
			fiber.Map{"fields": planErr.Fields})
	}
	var kycErr kyc.ValidationErrors
	if errors.As(err, &kycErr) {
		return failWithData(c, fiber.StatusUnprocessableEntity, "validation_failed", kycErr.Error(),
			fiber.Map{"fields": map[string]string(kycErr)})
	}
	var saveErr *feeplan.SaveError
	if errors.As(err, &saveErr) {
		return failWithData(c, fiber.StatusBadGateway, "save_failed", saveErr.Error(), saveErr.Report)
	}

	status, code := classify(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
		return fail(c, status, code, msgInternal)
	}
	return fail(c, status, code, err.Error())
}

// classify maps sentinel errors to a status and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, actor.ErrAnonymous):
		return fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, actor.ErrForbidden):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, feeplan.ErrNotFound),
		errors.Is(err, feeplan.ErrMemberNotFound),
		errors.Is(err, billing.ErrFeePlanNotFound),
		errors.Is(err, billing.ErrOrderNotFound),
		errors.Is(err, kyc.ErrNotFound),
		errors.Is(err, membership.ErrMemberNotFound),
		errors.Is(err, membership.ErrProviderNotFound),
		errors.Is(err, membership.ErrMembershipNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, feeplan.ErrPaidPlanImmutable),
		errors.Is(err, feeplan.ErrGatewayPaid),
		errors.Is(err, billing.ErrAlreadyPaid),
		errors.Is(err, kyc.ErrInvalidTransition):
		return fiber.StatusConflict, "invalid_state"
	case errors.Is(err, billing.ErrOrderMismatch),
		errors.Is(err, billing.ErrInvalidFilter),
		errors.Is(err, kyc.ErrRemarksRequired),
		errors.Is(err, kyc.ErrUnknownStatus),
		errors.Is(err, feeplan.ErrInvalidSchedule),
		errors.Is(err, membership.ErrSearchQueryTooSmall),
		errors.Is(err, membership.ErrInvalidCategory),
		errors.Is(err, membership.ErrInvalidRegion),
		errors.Is(err, membership.ErrMemberIDRequired):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, billing.ErrGatewayNotConfigured):
		return fiber.StatusServiceUnavailable, "gateway_unavailable"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// errorMessage is the user-facing text of err for flash toasts.
func errorMessage(err error) string {
	if status, _ := classify(err); status == fiber.StatusInternalServerError {
		var planErr *feeplan.ValidationError
		var kycErr kyc.ValidationErrors
		var saveErr *feeplan.SaveError
		if !errors.As(err, &planErr) && !errors.As(err, &kycErr) && !errors.As(err, &saveErr) {
			return msgInternal
		}
	}
	return err.Error()
}

// parseID reads a positive numeric id, returning 0 when absent or invalid.
func parseID(raw string) uint {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
