package constants

// Portal routes shared by controllers, middleware and status pages.
const (
	HomeRoute              = "/"
	LoginRoute             = "/login"
	ConsumerLoginRoute     = "/consumer/login"
	AdminRoute             = "/admin"
	AdminKYCRoute          = "/admin/kyc"
	AdminProvidersRoute    = "/admin/providers"
	ProviderDashboardRoute = "/provider/dashboard"
	ProviderMembersRoute   = "/provider/members"
	ProviderKYCRoute       = "/provider/kyc"
	ProviderKYCStatusRoute = "/provider/kyc/status"
	ProviderBankRoute      = "/provider/bank-accounts"
	ProviderSettingsRoute  = "/provider/settings"
	ConsumerDashboardRoute = "/consumer/dashboard"
	ConsumerWizardRoute    = "/consumer/memberships/add"
	ConsumerHistoryRoute   = "/consumer/payments"
)
