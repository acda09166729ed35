package session

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

var sessionStore *session.Store

// NewSessionStore keeps sessions in their own Redis database so flushing
// the cache does not log everybody out.
func NewSessionStore() *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        cache.Storage(cache.DBSessions),
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     8 * time.Hour,
		KeyLookup:      "cookie:session_id",
	})
	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// Login stores the actor in a fresh session.
func Login(c *fiber.Ctx, a actor.Actor) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %v", err)
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyRole, string(a.Role))
	sess.Set(usercontext.KeyUserID, a.UserID)
	sess.Set(usercontext.KeyProviderID, a.ProviderID)
	sess.Set(usercontext.KeyConsumerID, a.ConsumerID)
	sess.Set(usercontext.KeyUsername, a.Name)
	sess.Set(usercontext.KeyEmail, a.Email)
	return sess.Save()
}

// Logout destroys the session.
func Logout(c *fiber.Ctx) error {
	if sessionStore == nil {
		return nil
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// Getter is the read side of a session.
type Getter interface {
	Get(key string) interface{}
}

// ActorFrom restores the actor saved by Login. ok is false for anonymous
// sessions or unknown roles.
func ActorFrom(sess Getter) (actor.Actor, bool) {
	if authed, _ := sess.Get(usercontext.AuthKey).(bool); !authed {
		return actor.Actor{}, false
	}
	roleStr, _ := sess.Get(usercontext.KeyRole).(string)
	role, ok := actor.ParseRole(roleStr)
	if !ok {
		return actor.Actor{}, false
	}
	a := actor.Actor{Role: role}
	a.UserID, _ = sess.Get(usercontext.KeyUserID).(uint)
	a.ProviderID, _ = sess.Get(usercontext.KeyProviderID).(uint)
	a.ConsumerID, _ = sess.Get(usercontext.KeyConsumerID).(uint)
	a.Name, _ = sess.Get(usercontext.KeyUsername).(string)
	a.Email, _ = sess.Get(usercontext.KeyEmail).(string)
	return a, a.IsAuthenticated()
}
