package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FeeBook/app/controllers"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(group fiber.Router) {
	ac := controllers.GetAdminController()

	adminGroup := group.Group("/admin", middleware.RequireRole(actor.RoleAdmin, actor.RoleModerator))
	adminGroup.Get("/", ac.HandleDashboard)
	adminGroup.Post("/dashboard/refresh", ac.HandleDashboardRefresh)

	// Providers and their members
	adminGroup.Get("/providers", ac.HandleProviders)
	adminGroup.Post("/providers/:id/status", ac.HandleProviderStatus)
	adminGroup.Get("/providers/:id/members", ac.HandleProviderMembers)
	adminGroup.Get("/providers/:id/members/:memberId/fees", ac.HandleFeeEditor)
	adminGroup.Post("/providers/:id/members/:memberId/fees", ac.HandleFeeEditorAction)

	// KYC review
	adminGroup.Get("/kyc", ac.HandleKYCQueue)
	adminGroup.Get("/kyc/documents/:token", ac.HandleKYCDocument)
	adminGroup.Get("/kyc/:id", ac.HandleKYCDetail)
	adminGroup.Post("/kyc/:id/review", ac.HandleKYCReview)

	// Accounts and payments
	adminGroup.Get("/users", ac.HandleUsers)
	adminGroup.Post("/users/:id", ac.HandleUserUpdate)
	adminGroup.Get("/transactions", ac.HandleTransactions)
	adminGroup.Post("/sweeps", ac.HandleRunSweep)

	// Queue monitor
	adminGroup.Get("/queues", ac.HandleQueues)
	adminGroup.Get("/queues/data", ac.HandleQueuesData)
	adminGroup.Delete("/queues/delete/:key", ac.HandleQueueDelete)
}
