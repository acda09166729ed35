package membership

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// Repository provides DB operations used by the membership service.
type Repository interface {
	SearchProviders(category, region, query string, limit int) ([]models.Provider, error)
	GetProvider(id uint) (*models.Provider, error)
	FindMember(providerID uint, uniqueID string) (*models.Member, error)
	FindMembership(consumerID, memberID uint) (*models.ConsumerMembership, error)
	CreateMembershipIfNotExists(m *models.ConsumerMembership) (bool, error)
	ListMemberships(consumerID uint) ([]models.ConsumerMembership, error)
	GetMembership(id uint) (*models.ConsumerMembership, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a membership repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) SearchProviders(category, region, query string, limit int) ([]models.Provider, error) {
	like := "%" + strings.ToLower(query) + "%"
	var out []models.Provider
	err := r.db.
		Where("status = ? AND category = ? AND region = ?", models.ProviderStatusApproved, category, region).
		Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(city) LIKE ?", like, like, like).
		Order("name ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) GetProvider(id uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindMember(providerID uint, uniqueID string) (*models.Member, error) {
	var m models.Member
	if err := r.db.Where("provider_id = ? AND unique_id = ?", providerID, uniqueID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) FindMembership(consumerID, memberID uint) (*models.ConsumerMembership, error) {
	var m models.ConsumerMembership
	if err := r.db.Where("consumer_id = ? AND member_id = ?", consumerID, memberID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateMembershipIfNotExists(m *models.ConsumerMembership) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "consumer_id"},
			{Name: "member_id"},
		},
		DoNothing: true,
	}).Create(m)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListMemberships(consumerID uint) ([]models.ConsumerMembership, error) {
	var out []models.ConsumerMembership
	err := r.db.Preload("Member").Preload("Member.FeePlans").Preload("Provider").
		Where("consumer_id = ?", consumerID).
		Order("claimed_at DESC").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) GetMembership(id uint) (*models.ConsumerMembership, error) {
	var m models.ConsumerMembership
	err := r.db.Preload("Member").Preload("Member.FeePlans").Preload("Provider").First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
