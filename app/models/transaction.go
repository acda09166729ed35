package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionStatusSuccess      = "SUCCESS"
	TransactionStatusFailed       = "FAILED"
	TransactionStatusPending      = "PENDING"
	TransactionStatusUserDropped  = "USER_DROPPED"
	TransactionStatusCancelled    = "CANCELLED"
	TransactionStatusNotAttempted = "NOT_ATTEMPTED"
	TransactionStatusFlagged      = "FLAGGED"
	TransactionStatusVoid         = "VOID"
)

// Transaction tracks one gateway order created for a fee plan.
type Transaction struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OrderID          string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"orderId"`
	FeePlanID        uint            `gorm:"not null;index" json:"feePlanId"`
	MemberID         uint            `gorm:"not null;index" json:"memberId"`
	ProviderID       uint            `gorm:"not null;index:idx_transactions_provider_status,priority:1" json:"providerId"`
	ConsumerID       *uint           `gorm:"index" json:"consumerId,omitempty"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	Status           string          `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_transactions_provider_status,priority:2" json:"status"`
	PaymentSessionID string          `gorm:"type:varchar(255)" json:"-"`
	SessionCreatedAt *time.Time      `gorm:"type:timestamp;default:null" json:"-"`
	GatewayPaymentID string          `gorm:"type:varchar(64)" json:"gatewayPaymentId,omitempty"`
	PaymentMethod    string          `gorm:"type:varchar(32)" json:"paymentMethod,omitempty"`
	GatewayPayload   datatypes.JSON  `gorm:"type:json" json:"-"`
	PaidAt           *time.Time      `gorm:"type:timestamp;default:null" json:"paidAt,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	FeePlan          *FeePlan        `gorm:"foreignKey:FeePlanID" json:"feePlan,omitempty"`
	Member           *Member         `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Provider         *Provider       `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}

// IsFinal reports whether the gateway will not move this transaction again.
func (t *Transaction) IsFinal() bool {
	switch t.Status {
	case TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusCancelled,
		TransactionStatusUserDropped, TransactionStatusVoid:
		return true
	}
	return false
}
