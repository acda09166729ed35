package billing

import (
	"time"

	"github.com/ManuelReschke/FeeBook/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetFeePlan(id uint) (*models.FeePlan, error)
	GetMember(id uint) (*models.Member, error)
	GetConsumer(id uint) (*models.Consumer, error)
	HasMembership(consumerID, memberID uint) (bool, error)
	FindReusablePending(feePlanID uint, consumerID *uint, since time.Time) (*models.Transaction, error)
	CreateTransaction(t *models.Transaction) error
	GetTransactionByOrderID(orderID string) (*models.Transaction, error)
	SaveTransaction(t *models.Transaction) error
	SettleTransaction(t *models.Transaction, receipt string) error
	ListPendingBefore(before time.Time, limit int) ([]models.Transaction, error)
	ListTransactions(f HistoryFilter) ([]models.Transaction, int64, error)
	SummarizeTransactions(f HistoryFilter) (Summary, error)
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetFeePlan(id uint) (*models.FeePlan, error) {
	var p models.FeePlan
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetMember(id uint) (*models.Member, error) {
	var m models.Member
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetConsumer(id uint) (*models.Consumer, error) {
	var c models.Consumer
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) HasMembership(consumerID, memberID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.ConsumerMembership{}).
		Where("consumer_id = ? AND member_id = ?", consumerID, memberID).
		Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) FindReusablePending(feePlanID uint, consumerID *uint, since time.Time) (*models.Transaction, error) {
	q := r.db.Where("fee_plan_id = ? AND status = ? AND payment_session_id <> '' AND session_created_at >= ?",
		feePlanID, models.TransactionStatusPending, since)
	if consumerID != nil {
		q = q.Where("consumer_id = ?", *consumerID)
	} else {
		q = q.Where("consumer_id IS NULL")
	}
	var t models.Transaction
	if err := q.Order("session_created_at DESC").First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) CreateTransaction(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *gormRepository) GetTransactionByOrderID(orderID string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Preload("FeePlan").Preload("Member").Preload("Provider").
		Where("order_id = ?", orderID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) SaveTransaction(t *models.Transaction) error {
	return r.db.Omit(clause.Associations).Save(t).Error
}

func (r *gormRepository) SettleTransaction(t *models.Transaction, receipt string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return err
		}
		return tx.Model(&models.FeePlan{}).
			Where("id = ?", t.FeePlanID).
			Updates(map[string]interface{}{
				"status":  models.FeePlanStatusPaid,
				"paid_at": t.PaidAt,
				"receipt": receipt,
			}).Error
	})
}

func (r *gormRepository) ListPendingBefore(before time.Time, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.db.Where("status = ? AND created_at < ?", models.TransactionStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) filtered(f HistoryFilter) *gorm.DB {
	q := r.db.Model(&models.Transaction{})
	if f.ConsumerID != 0 {
		q = q.Where("transactions.consumer_id = ?", f.ConsumerID)
	}
	if f.ProviderID != 0 {
		q = q.Where("transactions.provider_id = ?", f.ProviderID)
	}
	if f.Status != "" {
		q = q.Where("transactions.status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("transactions.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transactions.created_at < ?", *f.To)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Joins("LEFT JOIN members ON members.id = transactions.member_id").
			Joins("LEFT JOIN fee_plans ON fee_plans.id = transactions.fee_plan_id").
			Where("transactions.order_id LIKE ? OR members.first_name LIKE ? OR members.last_name LIKE ? OR members.unique_id LIKE ? OR fee_plans.name LIKE ?",
				like, like, like, like, like)
	}
	return q
}

func (r *gormRepository) ListTransactions(f HistoryFilter) ([]models.Transaction, int64, error) {
	var total int64
	if err := r.filtered(f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Transaction
	err := r.filtered(f).
		Preload("FeePlan").Preload("Member").Preload("Provider").
		Order("transactions.created_at DESC").
		Offset(f.offset()).
		Limit(f.Limit).
		Find(&out).Error
	return out, total, err
}

func (r *gormRepository) SummarizeTransactions(f HistoryFilter) (Summary, error) {
	var s Summary
	err := r.filtered(f).Select(
		"COALESCE(SUM(CASE WHEN transactions.status = ? THEN transactions.amount ELSE 0 END), 0) AS total_amount, "+
			"COALESCE(SUM(CASE WHEN transactions.status = ? THEN 1 ELSE 0 END), 0) AS success_count, "+
			"COALESCE(SUM(CASE WHEN transactions.status = ? THEN 1 ELSE 0 END), 0) AS pending_count, "+
			"COALESCE(SUM(CASE WHEN transactions.status IN ? THEN 1 ELSE 0 END), 0) AS failed_count",
		models.TransactionStatusSuccess,
		models.TransactionStatusPending,
		models.TransactionStatusPending,
		[]string{models.TransactionStatusFailed, models.TransactionStatusUserDropped, models.TransactionStatusCancelled, models.TransactionStatusVoid},
	).Scan(&s).Error
	return s, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
