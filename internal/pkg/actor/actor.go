package actor

import (
	"errors"
	"strings"
)

// Role identifies which portal an authenticated principal belongs to.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleProvider  Role = "PROVIDER"
	RoleConsumer  Role = "CONSUMER"
)

var (
	ErrAnonymous = errors.New("authentication required")
	ErrForbidden = errors.New("not allowed for this account")
)

// Actor is the explicit identity handed to every service call.
type Actor struct {
	Role       Role   `json:"role"`
	UserID     uint   `json:"userId"`
	ProviderID uint   `json:"providerId,omitempty"`
	ConsumerID uint   `json:"consumerId,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// ParseRole maps stored role strings (any case) to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleModerator:
		return RoleModerator, true
	case RoleProvider:
		return RoleProvider, true
	case RoleConsumer:
		return RoleConsumer, true
	}
	return "", false
}

func (a Actor) IsAuthenticated() bool {
	return a.Role != "" && (a.UserID != 0 || a.ConsumerID != 0)
}

// IsStaff reports whether the actor works in the back office.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleModerator
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanManageProvider reports whether the actor may read or mutate data owned by providerID.
func (a Actor) CanManageProvider(providerID uint) bool {
	switch a.Role {
	case RoleAdmin, RoleModerator:
		return true
	case RoleProvider:
		return providerID != 0 && a.ProviderID == providerID
	case RoleConsumer:
		return false
	}
	return false
}

// RequireProvider returns an error unless the actor may manage providerID.
func (a Actor) RequireProvider(providerID uint) error {
	if !a.IsAuthenticated() {
		return ErrAnonymous
	}
	if !a.CanManageProvider(providerID) {
		return ErrForbidden
	}
	return nil
}

// RequireConsumer returns an error unless the actor is a signed-in consumer.
func (a Actor) RequireConsumer() error {
	if !a.IsAuthenticated() {
		return ErrAnonymous
	}
	if a.Role != RoleConsumer || a.ConsumerID == 0 {
		return ErrForbidden
	}
	return nil
}

// RequireStaff returns an error unless the actor is an admin or moderator.
func (a Actor) RequireStaff() error {
	if !a.IsAuthenticated() {
		return ErrAnonymous
	}
	if !a.IsStaff() {
		return ErrForbidden
	}
	return nil
}
