package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/FeeBook/app/models"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	OrderID         string
	PayloadJSON     string
	SignatureValid  bool
}

// CreateOrderInput is the create-order body of the pay page.
type CreateOrderInput struct {
	FeePlanID  uint  `json:"feePlanId"`
	MemberID   uint  `json:"memberId"`
	ProviderID uint  `json:"providerId"`
	ConsumerID *uint `json:"consumerId,omitempty"`
}

// HistoryFilter selects a page of transactions. ConsumerID and ProviderID
// are set from the actor, never from the request.
type HistoryFilter struct {
	Page       int
	Limit      int
	Status     string
	From       *time.Time
	To         *time.Time
	Search     string
	ConsumerID uint
	ProviderID uint
}

func (f *HistoryFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	f.Search = strings.TrimSpace(f.Search)
}

func (f HistoryFilter) offset() int {
	return (f.Page - 1) * f.Limit
}

var ErrInvalidFilter = errors.New("invalid filter")

// ParseHistoryFilter reads the query parameters of the history endpoints.
// Dates are YYYY-MM-DD; "to" is inclusive.
func ParseHistoryFilter(page, limit, status, from, to, search string) (HistoryFilter, error) {
	f := HistoryFilter{Status: status, Search: search}
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			return f, fmt.Errorf("%w: page", ErrInvalidFilter)
		}
		f.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return f, fmt.Errorf("%w: limit", ErrInvalidFilter)
		}
		f.Limit = n
	}
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return f, fmt.Errorf("%w: from", ErrInvalidFilter)
		}
		f.From = &t
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			return f, fmt.Errorf("%w: to", ErrInvalidFilter)
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	f.normalize()
	if f.Status != "" && !isTransactionStatus(f.Status) {
		return f, fmt.Errorf("%w: status", ErrInvalidFilter)
	}
	return f, nil
}

func isTransactionStatus(s string) bool {
	switch s {
	case models.TransactionStatusSuccess, models.TransactionStatusFailed, models.TransactionStatusPending,
		models.TransactionStatusUserDropped, models.TransactionStatusCancelled, models.TransactionStatusNotAttempted,
		models.TransactionStatusFlagged, models.TransactionStatusVoid:
		return true
	}
	return false
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPagination(f HistoryFilter, total int64) Pagination {
	pages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return Pagination{Page: f.Page, Limit: f.Limit, Total: total, TotalPages: pages}
}

// Summary aggregates every transaction matching a filter, not only the page.
type Summary struct {
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	SuccessCount int64           `json:"successCount"`
	PendingCount int64           `json:"pendingCount"`
	FailedCount  int64           `json:"failedCount"`
}

// HistoryPage is one page of transactions.
type HistoryPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
	Summary      Summary              `json:"summary"`
}
