package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type bankAccountRepository struct {
	db *gorm.DB
}

// NewBankAccountRepository creates a new bank account repository instance
func NewBankAccountRepository(db *gorm.DB) BankAccountRepository {
	return &bankAccountRepository{db: db}
}

func (r *bankAccountRepository) ListByProvider(providerID uint) ([]models.BankAccount, error) {
	var out []models.BankAccount
	err := r.db.Where("provider_id = ?", providerID).Order("is_default DESC, created_at ASC").Find(&out).Error
	return out, err
}

func (r *bankAccountRepository) GetByID(providerID, id uint) (*models.BankAccount, error) {
	var b models.BankAccount
	if err := r.db.Where("provider_id = ?", providerID).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Create stores the account. The first account of a provider becomes the
// default, and a new default demotes the previous one.
func (r *bankAccountRepository) Create(account *models.BankAccount) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BankAccount{}).Where("provider_id = ?", account.ProviderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			account.IsDefault = true
		}
		if account.IsDefault {
			if err := clearDefault(tx, account.ProviderID); err != nil {
				return err
			}
		}
		return tx.Create(account).Error
	})
}

func (r *bankAccountRepository) SetDefault(providerID, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var b models.BankAccount
		if err := tx.Where("provider_id = ?", providerID).First(&b, id).Error; err != nil {
			return err
		}
		if err := clearDefault(tx, providerID); err != nil {
			return err
		}
		return tx.Model(&b).Update("is_default", true).Error
	})
}

// Delete removes the account and promotes the oldest remaining one when the
// default was removed.
func (r *bankAccountRepository) Delete(providerID, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var b models.BankAccount
		if err := tx.Where("provider_id = ?", providerID).First(&b, id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&b).Error; err != nil {
			return err
		}
		if !b.IsDefault {
			return nil
		}
		var next models.BankAccount
		err := tx.Where("provider_id = ?", providerID).Order("created_at ASC").First(&next).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func clearDefault(tx *gorm.DB, providerID uint) error {
	return tx.Model(&models.BankAccount{}).
		Where("provider_id = ? AND is_default = ?", providerID, true).
		Update("is_default", false).Error
}
