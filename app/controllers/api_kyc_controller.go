package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

type reviewRequest struct {
	Decision kyc.Decision `json:"decision" form:"decision"`
	Remarks  string       `json:"remarks" form:"remarks"`
}

// kycDocuments collects the first file of every multipart field.
func kycDocuments(c *fiber.Ctx) map[string]kyc.Document {
	docs := map[string]kyc.Document{}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return docs
	}
	for field, files := range form.File {
		if len(files) > 0 {
			docs[field] = kyc.FromFileHeader(files[0])
		}
	}
	return docs
}

// HandleGetKYC returns the provider's verification state.
func (ac *APIController) HandleGetKYC(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	view, err := ac.d.KYC.Get(c.UserContext(), a, providerScope(a, parseID(c.Query("providerId"))))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, view)
}

// HandleSubmitOrganizationKYC accepts the multipart organization form.
func (ac *APIController) HandleSubmitOrganizationKYC(c *fiber.Ctx) error {
	var form kyc.OrganizationForm
	if err := c.BodyParser(&form); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid form data")
	}
	v, err := ac.d.KYC.SubmitOrganization(c.UserContext(), usercontext.GetActor(c), form, kycDocuments(c))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, v)
}

// HandleSubmitIndividualKYC accepts the multipart individual form.
func (ac *APIController) HandleSubmitIndividualKYC(c *fiber.Ctx) error {
	var form kyc.IndividualForm
	if err := c.BodyParser(&form); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid form data")
	}
	v, err := ac.d.KYC.SubmitIndividual(c.UserContext(), usercontext.GetActor(c), form, kycDocuments(c))
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, v)
}

// HandleListKYC returns the back-office verification queue.
func (ac *APIController) HandleListKYC(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	list, total, err := ac.d.KYC.List(c.UserContext(), usercontext.GetActor(c), c.Query("status"), page, limit)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, fiber.Map{"verifications": list, "total": total, "page": page, "limit": limit})
}

// HandleReviewKYC applies approve, reject or request_info.
func (ac *APIController) HandleReviewKYC(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	v, err := ac.d.KYC.Review(c.UserContext(), usercontext.GetActor(c), parseID(c.Params("id")), req.Decision, req.Remarks)
	if err != nil {
		return apiError(c, err)
	}
	return ok(c, v)
}
