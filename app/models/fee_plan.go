package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FeePlanStatusDue     = "DUE"
	FeePlanStatusPaid    = "PAID"
	FeePlanStatusOverdue = "OVERDUE"
)

// FeePlan is one billable line item owned by a member.
type FeePlan struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ProviderID    uint            `gorm:"not null;index" json:"providerId"`
	MemberID      uint            `gorm:"not null;index" json:"memberId"`
	Name          string          `gorm:"type:varchar(200);not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate       time.Time       `gorm:"type:date;not null;index:idx_fee_plans_status_due,priority:2" json:"dueDate"`
	Status        string          `gorm:"type:varchar(20);not null;default:'DUE';index:idx_fee_plans_status_due,priority:1" json:"status"`
	IsOfflinePaid bool            `gorm:"default:false" json:"isOfflinePaid"`
	PaidAt        *time.Time      `gorm:"type:timestamp;default:null" json:"paidAt,omitempty"`
	Receipt       string          `gorm:"type:varchar(255)" json:"receipt,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// IsSettled reports whether the plan's core terms are frozen.
func (f *FeePlan) IsSettled() bool {
	return f.Status == FeePlanStatusPaid || f.IsOfflinePaid
}
