package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository instance
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(member *models.Member) error {
	member.UniqueID = models.NormalizeUniqueID(member.UniqueID)
	return r.db.Create(member).Error
}

// GetByID loads a member only if it belongs to providerID.
func (r *memberRepository) GetByID(providerID, id uint) (*models.Member, error) {
	var m models.Member
	if err := r.db.Where("provider_id = ?", providerID).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepository) Update(member *models.Member) error {
	member.UniqueID = models.NormalizeUniqueID(member.UniqueID)
	return r.db.Save(member).Error
}

func (r *memberRepository) Delete(providerID, id uint) error {
	res := r.db.Where("provider_id = ?", providerID).Delete(&models.Member{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *memberRepository) ListByProvider(providerID uint, query string, offset, limit int) ([]models.Member, int64, error) {
	q := r.db.Model(&models.Member{}).Where("provider_id = ?", providerID)
	if s := strings.TrimSpace(query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(unique_id) LIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Member
	err := q.Order("first_name ASC, last_name ASC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

func (r *memberRepository) UniqueIDExists(providerID uint, uniqueID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Member{}).
		Where("provider_id = ? AND unique_id = ?", providerID, models.NormalizeUniqueID(uniqueID)).
		Count(&count).Error
	return count > 0, err
}

func (r *memberRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Member{}).Count(&count).Error
	return count, err
}
