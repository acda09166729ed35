package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProviderTypeIndividual   = "INDIVIDUAL"
	ProviderTypeOrganization = "ORGANIZATION"
)

const (
	ProviderStatusPending   = "PENDING"
	ProviderStatusApproved  = "APPROVED"
	ProviderStatusRejected  = "REJECTED"
	ProviderStatusSuspended = "SUSPENDED"
)

const (
	CategoryEducational     = "EDUCATIONAL"
	CategoryHigherEducation = "HIGHER_EDUCATION"
	CategoryCoaching        = "COACHING"
	CategoryFitnessSports   = "FITNESS_SPORTS"
	CategoryOther           = "OTHER"
)

// ProviderCategories is the closed category set offered in the membership wizard.
var ProviderCategories = []string{
	CategoryEducational,
	CategoryHigherEducation,
	CategoryCoaching,
	CategoryFitnessSports,
	CategoryOther,
}

// Provider is an organization or individual collecting fees from its members.
type Provider struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"type:varchar(200);not null;index" json:"name" validate:"required,min=2,max=200"`
	Code         string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code" validate:"required,max=32"`
	Type         string         `gorm:"type:varchar(20);not null;default:'ORGANIZATION'" json:"type" validate:"oneof=INDIVIDUAL ORGANIZATION"`
	Category     string         `gorm:"type:varchar(32);not null;index:idx_providers_search,priority:1" json:"category" validate:"oneof=EDUCATIONAL HIGHER_EDUCATION COACHING FITNESS_SPORTS OTHER"`
	Status       string         `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status" validate:"oneof=PENDING APPROVED REJECTED SUSPENDED"`
	AdminName    string         `gorm:"type:varchar(150)" json:"adminName"`
	Email        string         `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email"`
	Phone        string         `gorm:"type:varchar(20)" json:"phone"`
	AddressLine1 string         `gorm:"type:varchar(255)" json:"addressLine1"`
	AddressLine2 string         `gorm:"type:varchar(255)" json:"addressLine2"`
	City         string         `gorm:"type:varchar(100)" json:"city"`
	Region       string         `gorm:"type:varchar(8);index:idx_providers_search,priority:2" json:"region"`
	Pincode      string         `gorm:"type:varchar(6)" json:"pincode"`
	IsVerified   bool           `gorm:"default:false" json:"isVerified"`
	VerifiedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"verifiedAt,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Provider) Validate() error {
	return validate.Struct(p)
}

func (p *Provider) IsApproved() bool {
	return p.Status == ProviderStatusApproved
}

// IsValidCategory reports whether c belongs to the closed category set.
func IsValidCategory(c string) bool {
	for _, v := range ProviderCategories {
		if v == c {
			return true
		}
	}
	return false
}
