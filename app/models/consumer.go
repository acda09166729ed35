package models

import (
	"time"

	"gorm.io/gorm"
)

// Consumer is a paying end user. Consumers authenticate through OAuth.
type Consumer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(150)" json:"name"`
	Email     string         `gorm:"uniqueIndex;type:varchar(200)" json:"email"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	AvatarURL string         `gorm:"type:varchar(255);default:null" json:"avatarUrl"`
	Status    string         `gorm:"type:varchar(50);default:'active'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ConsumerIdentity stores external OAuth identities linked to a consumer
type ConsumerIdentity struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConsumerID     uint       `gorm:"index" json:"consumerId"`
	Provider       string     `gorm:"index:identity_provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string     `gorm:"index:identity_provider_uid,unique;type:varchar(191)" json:"providerUserId"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expiresAt,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ConsumerMembership records that a consumer claimed a member record.
type ConsumerMembership struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ConsumerID uint      `gorm:"not null;uniqueIndex:ux_consumer_member,priority:1" json:"consumerId"`
	MemberID   uint      `gorm:"not null;uniqueIndex:ux_consumer_member,priority:2;index" json:"memberId"`
	ProviderID uint      `gorm:"not null;index" json:"providerId"`
	ClaimedAt  time.Time `gorm:"type:timestamp" json:"claimedAt"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Member     *Member   `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Provider   *Provider `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}
