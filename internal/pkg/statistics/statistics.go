package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
)

const (
	CacheKeyDashboard = "statistics:dashboard"
	CacheExpiration   = 5 * time.Minute
	// DailyWindow is the number of days in the payments series.
	DailyWindow = 14
)

// Counts are the database aggregates shown on the admin dashboard.
type Counts interface {
	ProvidersByStatus() (map[string]int64, error)
	Members() (int64, error)
	Consumers() (int64, error)
	TransactionsByStatus() (map[string]int64, error)
	CollectedAmount() (decimal.Decimal, error)
	DailyPayments(since, until time.Time) ([]models.DailyStats, error)
}

// JobCounts reports job queue state. The job queue implements it.
type JobCounts interface {
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
	GetDelayedSize(ctx context.Context) (int64, error)
}

// Dashboard is the cached snapshot rendered by /admin.
type Dashboard struct {
	ProvidersByStatus    map[string]int64    `json:"providersByStatus"`
	Members              int64               `json:"members"`
	Consumers            int64               `json:"consumers"`
	TransactionsByStatus map[string]int64    `json:"transactionsByStatus"`
	Collected            decimal.Decimal     `json:"collected"`
	DailyPayments        []models.DailyStats `json:"dailyPayments"`
	QueuedJobs           int64               `json:"queuedJobs"`
	ProcessingJobs       int64               `json:"processingJobs"`
	RetryingJobs         int64               `json:"retryingJobs"`
	GeneratedAt          time.Time           `json:"generatedAt"`
}

func (d *Dashboard) TotalProviders() int64 {
	var n int64
	for _, v := range d.ProvidersByStatus {
		n += v
	}
	return n
}

func (d *Dashboard) TotalTransactions() int64 {
	var n int64
	for _, v := range d.TransactionsByStatus {
		n += v
	}
	return n
}

type Service struct {
	counts Counts
	jobs   JobCounts
	store  cache.Store
	now    func() time.Time
}

func NewService(counts Counts, jobs JobCounts, store cache.Store) *Service {
	return &Service{counts: counts, jobs: jobs, store: store, now: time.Now}
}

// Dashboard returns the cached snapshot, rebuilding it when missing or expired.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if ok, err := s.store.GetJSON(ctx, CacheKeyDashboard, &d); err == nil && ok {
		return &d, nil
	} else if err != nil {
		log.Warnf("[Statistics] cache read failed: %v", err)
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot and stores it for CacheExpiration.
func (s *Service) Refresh(ctx context.Context) (*Dashboard, error) {
	d, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetJSON(ctx, CacheKeyDashboard, d, CacheExpiration); err != nil {
		log.Warnf("[Statistics] cache write failed: %v", err)
	}
	return d, nil
}

func (s *Service) collect(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{GeneratedAt: s.now()}
	var err error
	if d.ProvidersByStatus, err = s.counts.ProvidersByStatus(); err != nil {
		return nil, fmt.Errorf("count providers: %w", err)
	}
	if d.Members, err = s.counts.Members(); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if d.Consumers, err = s.counts.Consumers(); err != nil {
		return nil, fmt.Errorf("count consumers: %w", err)
	}
	if d.TransactionsByStatus, err = s.counts.TransactionsByStatus(); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	if d.Collected, err = s.counts.CollectedAmount(); err != nil {
		return nil, fmt.Errorf("sum collected: %w", err)
	}
	until := d.GeneratedAt
	since := startOfDay(until).AddDate(0, 0, -(DailyWindow - 1))
	days, err := s.counts.DailyPayments(since, until)
	if err != nil {
		return nil, fmt.Errorf("daily payments: %w", err)
	}
	d.DailyPayments = fillDays(since, DailyWindow, days)
	if s.jobs != nil {
		// Redis hiccups should not hide the database numbers.
		if n, err := s.jobs.GetQueueSize(ctx); err == nil {
			d.QueuedJobs = n
		}
		if n, err := s.jobs.GetProcessingSize(ctx); err == nil {
			d.ProcessingJobs = n
		}
		if n, err := s.jobs.GetDelayedSize(ctx); err == nil {
			d.RetryingJobs = n
		}
	}
	return d, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// fillDays returns n consecutive days from since with zero entries for the
// days the query did not return.
func fillDays(since time.Time, n int, days []models.DailyStats) []models.DailyStats {
	byDate := make(map[string]models.DailyStats, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}
	out := make([]models.DailyStats, n)
	for i := range out {
		date := since.AddDate(0, 0, i).Format("2006-01-02")
		if d, ok := byDate[date]; ok {
			out[i] = d
			continue
		}
		out[i] = models.DailyStats{Date: date, Amount: decimal.Zero}
	}
	return out
}
