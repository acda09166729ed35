package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VerificationKindIndividual   = "INDIVIDUAL"
	VerificationKindOrganization = "ORGANIZATION"
)

// ProviderVerification is the KYC record of a provider. Status values are
// defined by the kyc package.
type ProviderVerification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ProviderID  uint              `gorm:"not null;uniqueIndex" json:"providerId"`
	Kind        string            `gorm:"type:varchar(20);not null" json:"kind"`
	EntityType  string            `gorm:"type:varchar(32)" json:"entityType,omitempty"`
	Status      string            `gorm:"type:varchar(20);not null;index" json:"status"`
	Details     datatypes.JSONMap `gorm:"type:json" json:"details"`
	Documents   datatypes.JSONMap `gorm:"type:json" json:"documents"`
	Remarks     string            `gorm:"type:text" json:"remarks,omitempty"`
	ReviewedBy  *uint             `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time        `gorm:"type:timestamp;default:null" json:"reviewedAt,omitempty"`
	SubmittedAt time.Time         `gorm:"type:timestamp" json:"submittedAt"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
	Provider    *Provider         `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}
