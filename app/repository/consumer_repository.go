package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type consumerRepository struct {
	db *gorm.DB
}

// NewConsumerRepository creates a new consumer repository instance
func NewConsumerRepository(db *gorm.DB) ConsumerRepository {
	return &consumerRepository{db: db}
}

func (r *consumerRepository) GetByID(id uint) (*models.Consumer, error) {
	var c models.Consumer
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consumerRepository) LinkIdentity(identity *models.ConsumerIdentity, profile models.Consumer) (*models.Consumer, error) {
	var out models.Consumer
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.ConsumerIdentity
		err := tx.Where("provider = ? AND provider_user_id = ?", identity.Provider, identity.ProviderUserID).First(&existing).Error
		if err == nil {
			existing.AccessToken = identity.AccessToken
			existing.RefreshToken = identity.RefreshToken
			existing.ExpiresAt = identity.ExpiresAt
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			return tx.First(&out, existing.ConsumerID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		email := strings.ToLower(strings.TrimSpace(profile.Email))
		err = tx.Where("email = ?", email).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = profile
			out.Email = email
			out.Status = "active"
			if err := tx.Create(&out).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		identity.ConsumerID = out.ID
		return tx.Create(identity).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *consumerRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Consumer{}).Count(&count).Error
	return count, err
}
