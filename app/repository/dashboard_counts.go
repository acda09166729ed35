package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// DashboardCounts exposes the aggregates the admin statistics need.
type DashboardCounts struct {
	Repos *Repositories
}

func (d DashboardCounts) ProvidersByStatus() (map[string]int64, error) {
	return d.Repos.Provider.CountByStatus()
}

func (d DashboardCounts) Members() (int64, error) {
	return d.Repos.Member.Count()
}

func (d DashboardCounts) Consumers() (int64, error) {
	return d.Repos.Consumer.Count()
}

func (d DashboardCounts) TransactionsByStatus() (map[string]int64, error) {
	return d.Repos.Transaction.CountByStatus()
}

func (d DashboardCounts) CollectedAmount() (decimal.Decimal, error) {
	return d.Repos.Transaction.CollectedAmount()
}

func (d DashboardCounts) DailyPayments(since, until time.Time) ([]models.DailyStats, error) {
	return d.Repos.Transaction.DailyPayments(since, until)
}
