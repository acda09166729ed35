package controllers

// Global controller instances, built by Initialize.
var (
	apiController      *APIController
	authController     *AuthController
	adminController    *AdminController
	providerController *ProviderController
	consumerController *ConsumerController
)

// GetAPIController returns the JSON API controller.
func GetAPIController() *APIController {
	GetDeps()
	return apiController
}

// GetAuthController returns the sign-in controller.
func GetAuthController() *AuthController {
	GetDeps()
	return authController
}

// GetAdminController returns the back-office controller.
func GetAdminController() *AdminController {
	GetDeps()
	return adminController
}

// GetProviderController returns the provider portal controller.
func GetProviderController() *ProviderController {
	GetDeps()
	return providerController
}

// GetConsumerController returns the consumer portal controller.
func GetConsumerController() *ConsumerController {
	GetDeps()
	return consumerController
}
