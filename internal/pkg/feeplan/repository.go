package feeplan

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// Repository provides DB operations used by the fee-plan service.
type Repository interface {
	GetMember(providerID, memberID uint) (*models.Member, error)
	GetFeePlan(id uint) (*models.FeePlan, error)
	CreateFeePlan(p *models.FeePlan) error
	SaveFeePlan(p *models.FeePlan) error
	DeleteFeePlan(id uint) error
	HasSuccessfulTransaction(feePlanID uint) (bool, error)
	GetPaymentView(feePlanID uint) (*PaymentView, error)
	MarkOverdue(before time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a fee-plan repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetMember(providerID, memberID uint) (*models.Member, error) {
	var m models.Member
	err := r.db.
		Preload("FeePlans", func(db *gorm.DB) *gorm.DB {
			return db.Order("due_date ASC, id ASC")
		}).
		Where("id = ? AND provider_id = ?", memberID, providerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetFeePlan(id uint) (*models.FeePlan, error) {
	var p models.FeePlan
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreateFeePlan(p *models.FeePlan) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SaveFeePlan(p *models.FeePlan) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) DeleteFeePlan(id uint) error {
	return r.db.Delete(&models.FeePlan{}, id).Error
}

func (r *gormRepository) HasSuccessfulTransaction(feePlanID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.Transaction{}).
		Where("fee_plan_id = ? AND status = ?", feePlanID, models.TransactionStatusSuccess).
		Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) GetPaymentView(feePlanID uint) (*PaymentView, error) {
	var v PaymentView
	if err := r.db.First(&v.FeePlan, feePlanID).Error; err != nil {
		return nil, err
	}
	if err := r.db.First(&v.Member, v.FeePlan.MemberID).Error; err != nil {
		return nil, err
	}
	if err := r.db.First(&v.Provider, v.FeePlan.ProviderID).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkOverdue flips stored DUE plans with a due date before the given day.
func (r *gormRepository) MarkOverdue(before time.Time) (int64, error) {
	res := r.db.Model(&models.FeePlan{}).
		Where("status = ? AND is_offline_paid = ? AND due_date < ?", models.FeePlanStatusDue, false, before).
		Update("status", models.FeePlanStatusOverdue)
	return res.RowsAffected, res.Error
}
