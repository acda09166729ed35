package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) List(status string, offset, limit int) ([]models.Transaction, int64, error) {
	q := r.db.Model(&models.Transaction{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Transaction
	err := q.Preload("FeePlan").Preload("Member").Preload("Provider").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, total, err
}

func (r *transactionRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.Transaction{}).
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

// CollectedAmount sums all successful payments.
func (r *transactionRepository) CollectedAmount() (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", models.TransactionStatusSuccess).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// DailyPayments returns the count and sum of successful payments per day of
// paid_at for a date range. Days without payments are omitted.
func (r *transactionRepository) DailyPayments(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date   string
		Count  int64
		Amount decimal.NullDecimal
	}

	err := r.db.Model(&models.Transaction{}).
		Select("DATE_FORMAT(paid_at, '%Y-%m-%d') as date, COUNT(*) as count, SUM(amount) as amount").
		Where("status = ? AND paid_at BETWEEN ? AND ?", models.TransactionStatusSuccess, startDate, endDate).
		Group("DATE_FORMAT(paid_at, '%Y-%m-%d')").
		Order("date").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily payment stats: %w", err)
	}

	out := make([]models.DailyStats, len(results))
	for i, result := range results {
		out[i] = models.DailyStats{Date: result.Date, Count: int(result.Count), Amount: result.Amount.Decimal}
	}
	return out, nil
}
