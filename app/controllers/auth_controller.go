package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/codes"
	"github.com/ManuelReschke/FeeBook/internal/pkg/constants"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/session"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

const msgLoginFailed = "There is a problem with the login process"

// AuthController handles sign-in for all three portals and provider sign-up.
type AuthController struct {
	d *Deps
}

func NewAuthController(d *Deps) *AuthController {
	return &AuthController{d: d}
}

// landingFor is the first page of an actor's portal.
func landingFor(a actor.Actor) string {
	switch a.Role {
	case actor.RoleAdmin, actor.RoleModerator:
		return constants.AdminRoute
	case actor.RoleProvider:
		return constants.ProviderDashboardRoute
	case actor.RoleConsumer:
		return constants.ConsumerDashboardRoute
	}
	return constants.HomeRoute
}

// HandleHome sends signed-in users to their portal and shows the landing page otherwise.
func (ac *AuthController) HandleHome(c *fiber.Ctx) error {
	if a := usercontext.GetActor(c); a.IsAuthenticated() {
		return c.Redirect(landingFor(a))
	}
	return render(c, "home/index", "FeeBook", nil)
}

// HandleLogin renders and processes the password login of staff and providers.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return render(c, "auth/login", "Sign in", nil)
	}

	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	user, err := ac.d.Repos.User.GetByEmail(email)
	if err != nil || !user.CheckPassword(c.FormValue("password")) {
		return flash.Error(c, constants.LoginRoute, msgLoginFailed)
	}
	if !user.IsActive() {
		return flash.Error(c, constants.LoginRoute, "This account is not active")
	}
	role, ok := actor.ParseRole(user.Role)
	if !ok {
		log.Warnf("[Auth] User %d has unknown role %q", user.ID, user.Role)
		return flash.Error(c, constants.LoginRoute, msgLoginFailed)
	}
	a := actor.Actor{Role: role, UserID: user.ID, Name: user.Name, Email: user.Email}
	if role == actor.RoleProvider {
		if user.ProviderID == nil {
			return flash.Error(c, constants.LoginRoute, msgLoginFailed)
		}
		a.ProviderID = *user.ProviderID
	}

	if err := session.Login(c, a); err != nil {
		log.Errorf("[Auth] Session for user %d failed: %v", user.ID, err)
		return flash.Error(c, constants.LoginRoute, msgInternal)
	}
	if err := ac.d.Repos.User.UpdateLastLogin(user.ID, time.Now()); err != nil {
		log.Warnf("[Auth] Update last login of user %d failed: %v", user.ID, err)
	}
	return flash.Success(c, landingFor(a), "Welcome back, "+user.Name)
}

// HandleLogout ends the session of any portal.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	target := constants.LoginRoute
	if usercontext.GetActor(c).Role == actor.RoleConsumer {
		target = constants.ConsumerLoginRoute
	}
	if err := session.Logout(c); err != nil {
		log.Warnf("[Auth] Logout failed: %v", err)
	}
	c.Locals(usercontext.KeyFromProtected, false)
	return flash.Success(c, target, "You have been signed out")
}

// registerForm is the provider sign-up form.
type registerForm struct {
	Name      string `form:"name"`
	Type      string `form:"type"`
	Category  string `form:"category"`
	Region    string `form:"region"`
	City      string `form:"city"`
	Phone     string `form:"phone"`
	AdminName string `form:"adminName"`
	Email     string `form:"email"`
	Password  string `form:"password"`
}

// HandleRegister renders and processes the provider sign-up.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	const back = "/register"
	if c.Method() != fiber.MethodPost {
		return render(c, "auth/register", "Register your organization", fiber.Map{
			"HCaptchaSiteKey": ac.d.HCaptchaSiteKey,
			"Categories":      models.ProviderCategories,
			"Regions":         membership.Regions,
		})
	}

	if ac.d.Captcha != nil {
		if err := ac.d.Captcha.Verify(c.UserContext(), c.FormValue("h-captcha-response"), c.IP()); err != nil {
			msg := "Captcha validation failed. Please try again."
			log.Warnf("[Auth] hCaptcha validation error: %v", err)
			if env.IsDev() {
				msg = "Captcha validation failed: " + err.Error()
			}
			return flash.Error(c, back, msg)
		}
	}

	var form registerForm
	if err := c.BodyParser(&form); err != nil {
		return flash.Error(c, back, "Invalid form data")
	}
	region := strings.ToUpper(strings.TrimSpace(form.Region))
	if !membership.IsValidRegion(region) {
		return flash.Error(c, back, membership.ErrInvalidRegion.Error())
	}

	code, err := ac.providerCode(form.Name)
	if err != nil {
		log.Errorf("[Auth] Generate provider code failed: %v", err)
		return flash.Error(c, back, msgInternal)
	}
	provider := &models.Provider{
		Name:      strings.TrimSpace(form.Name),
		Code:      code,
		Type:      strings.ToUpper(strings.TrimSpace(form.Type)),
		Category:  strings.ToUpper(strings.TrimSpace(form.Category)),
		Status:    models.ProviderStatusPending,
		AdminName: strings.TrimSpace(form.AdminName),
		Email:     strings.ToLower(strings.TrimSpace(form.Email)),
		Phone:     strings.TrimSpace(form.Phone),
		City:      strings.TrimSpace(form.City),
		Region:    region,
	}
	if err := provider.Validate(); err != nil {
		return flash.Error(c, back, validationMessage(err))
	}
	owner, err := models.CreateUser(provider.AdminName, provider.Email, form.Password, models.ROLE_PROVIDER)
	if err != nil {
		return flash.Error(c, back, validationMessage(err))
	}
	if existing, err := ac.d.Repos.User.GetByEmail(owner.Email); err == nil && existing != nil {
		return flash.Error(c, back, "An account with this email already exists")
	}
	if err := ac.d.Repos.Provider.Register(provider, owner); err != nil {
		log.Errorf("[Auth] Register provider %q failed: %v", provider.Name, err)
		return flash.Error(c, back, msgInternal)
	}
	log.Infof("[Auth] Provider %d (%s) registered", provider.ID, provider.Code)
	return flash.Success(c, constants.LoginRoute, "Registration complete. Sign in to verify your organization.")
}

// providerCode draws provider codes until one is free.
func (ac *AuthController) providerCode(name string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := codes.GenerateProviderCode(name)
		if err != nil {
			return "", err
		}
		exists, err := ac.d.Repos.Provider.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a provider code")
}

// HandleConsumerLogin renders the OAuth sign-in page of consumers.
func (ac *AuthController) HandleConsumerLogin(c *fiber.Ctx) error {
	if a := usercontext.GetActor(c); a.Role == actor.RoleConsumer {
		return c.Redirect(constants.ConsumerDashboardRoute)
	}
	return render(c, "auth/consumer_login", "Sign in", nil)
}

// HandleOAuthCallback completes the provider flow and signs the consumer in.
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[Auth] OAuth failed: %v", err)
		return flash.Error(c, constants.ConsumerLoginRoute, msgLoginFailed)
	}
	if strings.TrimSpace(u.Email) == "" {
		return flash.Error(c, constants.ConsumerLoginRoute, "Your account did not share an email address")
	}

	identity := &models.ConsumerIdentity{
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
	}
	if !u.ExpiresAt.IsZero() {
		exp := u.ExpiresAt
		identity.ExpiresAt = &exp
	}
	consumer, err := ac.d.Repos.Consumer.LinkIdentity(identity, models.Consumer{
		Name:      firstNonEmpty(u.Name, u.NickName, u.Email),
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	})
	if err != nil {
		log.Errorf("[Auth] Link %s identity failed: %v", u.Provider, err)
		return flash.Error(c, constants.ConsumerLoginRoute, msgInternal)
	}

	a := actor.Actor{Role: actor.RoleConsumer, ConsumerID: consumer.ID, Name: consumer.Name, Email: consumer.Email}
	if err := session.Login(c, a); err != nil {
		log.Errorf("[Auth] Session for consumer %d failed: %v", consumer.ID, err)
		return flash.Error(c, constants.ConsumerLoginRoute, msgInternal)
	}
	// HTMX boosted flows need a full redirect.
	c.Set("HX-Redirect", constants.ConsumerDashboardRoute)
	return c.Redirect(constants.ConsumerDashboardRoute, fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
