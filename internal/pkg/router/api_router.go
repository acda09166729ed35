package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/FeeBook/app/controllers"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/apidoc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			// Gateway retries must never be throttled away.
			return c.Path() == "/api/v1/pg/webhook"
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	ac := controllers.GetAPIController()
	v1 := api.Group("/v1")

	// Signature-verified in the controller
	v1.Post("/pg/webhook", ac.HandlePaymentWebhook)

	v1.Use(middleware.APIKeyAuthMiddleware(controllers.GetDeps().Repos.User, controllers.GetDeps().APIUsage))
	v1.Use(apidoc.ValidateRequests())

	providers := middleware.RequireAPIRole(actor.RoleProvider, actor.RoleAdmin, actor.RoleModerator)
	consumers := middleware.RequireAPIRole(actor.RoleConsumer)
	staff := middleware.RequireAPIRole(actor.RoleAdmin, actor.RoleModerator)
	signedIn := middleware.RequireAPIRole(actor.RoleAdmin, actor.RoleModerator, actor.RoleProvider, actor.RoleConsumer)

	// Fee plans
	v1.Get("/provider/feeplan", providers, ac.HandleGetMemberFeePlans)
	v1.Post("/provider/feeplan", providers, ac.HandleCreateFeePlan)
	v1.Put("/provider/feeplan", providers, ac.HandleUpdateFeePlan)
	v1.Delete("/provider/feeplan", providers, ac.HandleDeleteFeePlan)
	v1.Post("/provider/feeplan/mark-paid", providers, ac.HandleMarkPaid)
	v1.Get("/fee-plans/:id", signedIn, ac.HandleGetPaymentView)

	// Payments
	v1.Post("/pg/create-order", consumers, ac.HandleCreateOrder)
	v1.Get("/pg/orders/:orderId", signedIn, ac.HandleGetOrder)
	v1.Get("/consumer/payment-history", consumers, ac.HandleConsumerPaymentHistory)
	v1.Get("/provider/payments", providers, ac.HandleProviderPayments)

	// KYC
	v1.Get("/provider/kyc", providers, ac.HandleGetKYC)
	v1.Get("/provider/kyc/individual", providers, ac.HandleGetKYC)
	v1.Post("/provider/kyc/individual", providers, ac.HandleSubmitIndividualKYC)
	v1.Get("/provider/kyc/organization", providers, ac.HandleGetKYC)
	v1.Post("/provider/kyc/organization", providers, ac.HandleSubmitOrganizationKYC)
	v1.Get("/admin/kyc", staff, ac.HandleListKYC)
	v1.Post("/admin/kyc/:id/review", staff, ac.HandleReviewKYC)

	// Memberships
	v1.Get("/provider/search", signedIn, ac.HandleProviderSearch)
	v1.Get("/provider/member/by-uniqueid", signedIn, ac.HandleMemberByUniqueID)
	v1.Post("/consumer/claim-membership", consumers, ac.HandleClaimMembership)
	v1.Get("/consumer/memberships", consumers, ac.HandleConsumerMemberships)
	v1.Get("/consumer/memberships/:id/schedule", consumers, ac.HandleMembershipSchedule)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
