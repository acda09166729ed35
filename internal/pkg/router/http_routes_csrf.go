package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/FeeBook/app/controllers"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
	"github.com/ManuelReschke/FeeBook/internal/pkg/middleware"
)

const csrfHeader = "X-CSRF-Token"

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		// The pay page posts its checkout result as JSON with the token in a header.
		Extractor: func(c *fiber.Ctx) (string, error) {
			if token := c.Get(csrfHeader); token != "" {
				return token, nil
			}
			return csrf.CsrfFromForm("_csrf")(c)
		},
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/auth/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))

	auth := controllers.GetAuthController()
	group.Get("/", auth.HandleHome)
	group.Get("/login", auth.HandleLogin)
	group.Post("/login", auth.HandleLogin)
	group.Get("/register", auth.HandleRegister)
	group.Post("/register", auth.HandleRegister)
	group.Get("/consumer/login", auth.HandleConsumerLogin)
	group.Post("/logout", middleware.RequireAuth, auth.HandleLogout)

	h.registerProviderRoutes(group)
	h.registerConsumerRoutes(group)
	h.registerAdminRoutes(group)
}

func (h HttpRouter) registerProviderRoutes(group fiber.Router) {
	pc := controllers.GetProviderController()

	provider := group.Group("/provider", middleware.RequireRole(actor.RoleProvider))
	provider.Get("/dashboard", pc.HandleDashboard)

	// Members and their fee plans
	provider.Get("/members", pc.HandleMembers)
	provider.Get("/members/new", pc.HandleMemberNew)
	provider.Post("/members/new", pc.HandleMemberCreate)
	provider.Get("/members/:memberId/edit", pc.HandleMemberEdit)
	provider.Post("/members/:memberId/edit", pc.HandleMemberUpdate)
	provider.Post("/members/:memberId/delete", pc.HandleMemberDelete)
	provider.Get("/members/:memberId/fees", pc.HandleFeeEditor)
	provider.Post("/members/:memberId/fees", pc.HandleFeeEditorAction)

	// Verification
	provider.Get("/kyc", pc.HandleKYC)
	provider.Post("/kyc", pc.HandleKYCSubmit)
	provider.Get("/kyc/status", pc.HandleKYCStatus)

	// Payouts and integration
	provider.Get("/bank-accounts", pc.HandleBankAccounts)
	provider.Post("/bank-accounts", pc.HandleBankAccountCreate)
	provider.Post("/bank-accounts/:id/default", pc.HandleBankAccountDefault)
	provider.Post("/bank-accounts/:id/delete", pc.HandleBankAccountDelete)
	provider.Get("/settings", pc.HandleSettings)
	provider.Post("/settings/api-key", pc.HandleAPIKeyGenerate)
	provider.Post("/settings/api-key/revoke", pc.HandleAPIKeyRevoke)
	provider.Get("/payments", pc.HandlePayments)
}

func (h HttpRouter) registerConsumerRoutes(group fiber.Router) {
	cc := controllers.GetConsumerController()

	consumer := group.Group("/consumer", middleware.RequireRole(actor.RoleConsumer))
	consumer.Get("/dashboard", cc.HandleDashboard)

	// Add-membership wizard
	consumer.Get("/memberships/add", cc.HandleWizard)
	consumer.Post("/memberships/add", cc.HandleWizardAction)
	consumer.Get("/memberships/add/search", cc.HandleWizardSearch)
	consumer.Get("/memberships/:id", cc.HandleSchedule)

	// Checkout
	consumer.Get("/pay", cc.HandlePay)
	consumer.Post("/pay/result", cc.HandlePayResult)
	consumer.Get("/payments", cc.HandleHistory)
	consumer.Get("/payments/verify/:orderId", cc.HandleVerify)
	consumer.Get("/payments/verify/:orderId/status", cc.HandleVerifyStatus)
	consumer.Get("/payments/receipt/:orderId", cc.HandleReceipt)
}
