package models

import (
	"regexp"
	"time"
)

var (
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
	upiPattern           = regexp.MustCompile(`^[\w.\-]{2,256}@[a-zA-Z]{2,64}$`)
	phonePattern         = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// BankAccount is a provider's payout destination.
type BankAccount struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderID        uint      `gorm:"not null;index" json:"providerId"`
	AccountNumber     string    `gorm:"type:varchar(18);not null" json:"accountNumber" validate:"required,accountno"`
	IFSC              string    `gorm:"type:varchar(11);not null" json:"ifsc" validate:"required,ifsc"`
	AccountHolderName string    `gorm:"type:varchar(150);not null" json:"accountHolderName" validate:"required,max=150"`
	Phone             string    `gorm:"type:varchar(10)" json:"phone" validate:"required,mobile"`
	UPIVPA            string    `gorm:"column:upi_vpa;type:varchar(255)" json:"upiVpa,omitempty" validate:"omitempty,upi"`
	IsDefault         bool      `gorm:"default:false" json:"isDefault"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (b *BankAccount) Validate() error {
	return validate.Struct(b)
}

// MaskedAccountNumber keeps the last four digits visible.
func (b *BankAccount) MaskedAccountNumber() string {
	n := len(b.AccountNumber)
	if n <= 4 {
		return b.AccountNumber
	}
	masked := make([]byte, n)
	for i := 0; i < n-4; i++ {
		masked[i] = 'X'
	}
	copy(masked[n-4:], b.AccountNumber[n-4:])
	return string(masked)
}
