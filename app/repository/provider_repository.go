package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a new provider repository instance
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) Register(provider *models.Provider, owner *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(provider).Error; err != nil {
			return err
		}
		owner.ProviderID = &provider.ID
		owner.Role = models.ROLE_PROVIDER
		return tx.Create(owner).Error
	})
}

func (r *providerRepository) GetByID(id uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Provider{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *providerRepository) Update(provider *models.Provider) error {
	return r.db.Save(provider).Error
}

func (r *providerRepository) UpdateStatus(id uint, status string) error {
	res := r.db.Model(&models.Provider{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns one page of providers, newest first.
func (r *providerRepository) List(f ProviderFilter) ([]models.Provider, int64, error) {
	q := r.db.Model(&models.Provider{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Provider
	err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error
	return out, total, err
}

func (r *providerRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.Provider{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
