package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankAccountValidate(t *testing.T) {
	valid := BankAccount{
		ProviderID:        1,
		AccountNumber:     "123456789012",
		IFSC:              "HDFC0001234",
		AccountHolderName: "Sunrise Academy",
		Phone:             "9876543210",
		UPIVPA:            "sunrise.academy@okhdfc",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(b *BankAccount)
	}{
		{name: "short account number", mutate: func(b *BankAccount) { b.AccountNumber = "12345" }},
		{name: "letters in account number", mutate: func(b *BankAccount) { b.AccountNumber = "12345678A" }},
		{name: "ifsc fifth char not zero", mutate: func(b *BankAccount) { b.IFSC = "HDFC1001234" }},
		{name: "lowercase ifsc", mutate: func(b *BankAccount) { b.IFSC = "hdfc0001234" }},
		{name: "bad upi", mutate: func(b *BankAccount) { b.UPIVPA = "no-at-sign" }},
		{name: "bad phone", mutate: func(b *BankAccount) { b.Phone = "12345" }},
		{name: "missing holder", mutate: func(b *BankAccount) { b.AccountHolderName = "" }},
	}
	for _, tt := range tests {
		b := valid
		tt.mutate(&b)
		if err := b.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}

	noUPI := valid
	noUPI.UPIVPA = ""
	assert.NoError(t, noUPI.Validate())
}

func TestMaskedAccountNumber(t *testing.T) {
	b := BankAccount{AccountNumber: "123456789012"}
	assert.Equal(t, "XXXXXXXX9012", b.MaskedAccountNumber())

	short := BankAccount{AccountNumber: "123"}
	assert.Equal(t, "123", short.MaskedAccountNumber())
}

func TestMemberFullNameAndUniqueID(t *testing.T) {
	m := Member{FirstName: "Asha", MiddleName: " ", LastName: "Rao"}
	assert.Equal(t, "Asha Rao", m.FullName())
	assert.Equal(t, "STU-001", NormalizeUniqueID("  stu-001 "))
}

func TestFeePlanIsSettled(t *testing.T) {
	assert.False(t, (&FeePlan{Status: FeePlanStatusDue}).IsSettled())
	assert.True(t, (&FeePlan{Status: FeePlanStatusPaid}).IsSettled())
	assert.True(t, (&FeePlan{Status: FeePlanStatusOverdue, IsOfflinePaid: true}).IsSettled())
}

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("Mod Erator", "mod@example.com", "secret123", ROLE_MODERATOR)
	require.NoError(t, err)
	assert.True(t, u.IsStaff())
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("wrong"))

	_, err = CreateUser("Someone", "someone@example.com", "secret123", "root")
	assert.Error(t, err)
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory(CategoryCoaching))
	assert.False(t, IsValidCategory("coaching"))
}
