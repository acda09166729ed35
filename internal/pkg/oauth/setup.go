package oauth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

// CallbackPath is the route goth redirects back to for provider.
func CallbackPath(provider string) string {
	return "/auth/" + provider + "/callback"
}

// Setup initializes Goth providers and session store based on environment variables.
// It is safe to call multiple times; providers will just be re-registered.
func Setup() {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	UseProviders(base)
	setupStateStore()
}

// UseProviders registers the OAuth providers and the goth cookie store.
// Only consumers sign in through OAuth; providers and staff use passwords.
func UseProviders(base string) {
	goth.UseProviders(
		google.New(
			env.GetEnv("GOOGLE_KEY", ""),
			env.GetEnv("GOOGLE_SECRET", ""),
			base+CallbackPath("google"),
			"email", "profile",
		),
	)

	cookieStore := sessions.NewCookieStore([]byte(env.GetEnv("SESSION_SECRET", "feebook-dev-session-secret")))
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.Secure = !env.IsDev()
	cookieStore.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = cookieStore
}

// setupStateStore keeps OAuth state next to the app sessions.
func setupStateStore() {
	gothfiber.SessionStore = session.New(session.Config{
		Storage:        cache.Storage(cache.DBOAuthState),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     72 * time.Hour,
	})
}
