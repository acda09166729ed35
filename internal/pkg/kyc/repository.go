package kyc

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// Repository provides DB operations used by the KYC service.
type Repository interface {
	GetByProvider(providerID uint) (*models.ProviderVerification, error)
	GetByID(id uint) (*models.ProviderVerification, error)
	Upsert(v *models.ProviderVerification) error
	Save(v *models.ProviderVerification) error
	SetProviderVerified(providerID uint, verified bool, at *time.Time) error
	List(status string, offset, limit int) ([]models.ProviderVerification, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a KYC repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByProvider(providerID uint) (*models.ProviderVerification, error) {
	var v models.ProviderVerification
	if err := r.db.Where("provider_id = ?", providerID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) GetByID(id uint) (*models.ProviderVerification, error) {
	var v models.ProviderVerification
	if err := r.db.Preload("Provider").First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) Upsert(v *models.ProviderVerification) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind",
			"entity_type",
			"status",
			"details",
			"documents",
			"remarks",
			"reviewed_by",
			"reviewed_at",
			"submitted_at",
			"updated_at",
		}),
	}).Create(v).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_id = ?", v.ProviderID).First(v).Error
}

func (r *gormRepository) Save(v *models.ProviderVerification) error {
	return r.db.Omit("Provider").Save(v).Error
}

func (r *gormRepository) SetProviderVerified(providerID uint, verified bool, at *time.Time) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", providerID).Updates(map[string]interface{}{
		"is_verified": verified,
		"verified_at": at,
	}).Error
}

func (r *gormRepository) List(status string, offset, limit int) ([]models.ProviderVerification, int64, error) {
	q := r.db.Model(&models.ProviderVerification{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.ProviderVerification
	err := q.Preload("Provider").Order("submitted_at ASC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}
