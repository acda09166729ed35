package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Member is a person enrolled with a provider and billed through fee plans.
type Member struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ProviderID       uint           `gorm:"not null;index;uniqueIndex:ux_members_provider_unique,priority:1" json:"providerId"`
	UniqueID         string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_members_provider_unique,priority:2" json:"uniqueId" validate:"required,max=64"`
	FirstName        string         `gorm:"type:varchar(100);not null" json:"firstName" validate:"required,max=100"`
	MiddleName       string         `gorm:"type:varchar(100)" json:"middleName" validate:"max=100"`
	LastName         string         `gorm:"type:varchar(100)" json:"lastName" validate:"max=100"`
	Phone            string         `gorm:"type:varchar(20)" json:"phone" validate:"omitempty,max=20"`
	Email            string         `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email"`
	Category         string         `gorm:"type:varchar(100)" json:"category"`
	SubCategory      string         `gorm:"type:varchar(100)" json:"subcategory"`
	GuardianName     string         `gorm:"type:varchar(150)" json:"guardianName"`
	GuardianRelation string         `gorm:"type:varchar(50)" json:"guardianRelation"`
	GuardianPhone    string         `gorm:"type:varchar(20)" json:"guardianPhone"`
	FeePlans         []FeePlan      `gorm:"foreignKey:MemberID" json:"feePlans,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Member) Validate() error {
	return validate.Struct(m)
}

func (m *Member) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.FirstName, m.MiddleName, m.LastName} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeUniqueID is the canonical form used for storage and lookups.
func NormalizeUniqueID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
