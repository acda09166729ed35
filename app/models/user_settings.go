package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserSettings stores per-user notification preferences and the provider
// integration API key.
type UserSettings struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"uniqueIndex" json:"userId"`
	NotifyPayments   bool           `gorm:"default:true" json:"notifyPayments"`
	NotifyKYC        bool           `gorm:"default:true" json:"notifyKyc"`
	APIKeyHash       string         `gorm:"type:char(64);default:''" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"apiKeyPrefix"`
	APIKeyCreatedAt  *time.Time     `json:"apiKeyCreatedAt"`
	APIKeyLastUsedAt *time.Time     `json:"apiKeyLastUsedAt"`
	APIKeyRevokedAt  *time.Time     `json:"apiKeyRevokedAt"`
	APIRequestCount  int64          `gorm:"default:0" json:"apiRequestCount"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// API keys are "fbk_" followed by 32 random bytes in lower-case base32.
// Only the SHA-256 hash and a display prefix are stored.
const (
	apiKeyPrefix       = "fbk_"
	apiKeyDisplayChars = 16
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GetOrCreateUserSettings returns the user's settings, inserting the
// defaults on first access.
func GetOrCreateUserSettings(db *gorm.DB, userID uint) (*UserSettings, error) {
	us := UserSettings{}
	err := db.Where(UserSettings{UserID: userID}).
		Attrs(UserSettings{NotifyPayments: true, NotifyKYC: true}).
		FirstOrCreate(&us).Error
	if err != nil {
		return nil, err
	}
	return &us, nil
}

func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey replaces any previous key and returns the raw secret, which
// is shown once. The caller saves the settings.
func (us *UserSettings) IssueAPIKey(now time.Time) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))

	us.APIKeyHash = HashAPIKey(raw)
	us.APIKeyPrefix = raw[:apiKeyDisplayChars]
	us.APIKeyCreatedAt = &now
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = nil
	us.APIRequestCount = 0
	return raw, nil
}

// RevokeAPIKey disables the key. The row and its usage count are kept.
func (us *UserSettings) RevokeAPIKey(now time.Time) {
	us.APIKeyHash = ""
	us.APIKeyPrefix = ""
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = &now
}

// HashAPIKey is the lookup hash of a presented key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
