package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

type memRepo struct {
	plans       map[uint]*models.FeePlan
	members     map[uint]*models.Member
	memberships map[[2]uint]bool
	txs         map[string]*models.Transaction
	events      map[string]*models.PaymentWebhookEvent
	nextID      uint
}

func newMemRepo() *memRepo {
	return &memRepo{
		plans: map[uint]*models.FeePlan{
			9:  {ID: 9, MemberID: 5, ProviderID: 1, Name: "June", Amount: decimal.RequireFromString("500.00"), Status: models.FeePlanStatusDue},
			10: {ID: 10, MemberID: 5, ProviderID: 1, Name: "May", Amount: decimal.NewFromInt(400), Status: models.FeePlanStatusDue, IsOfflinePaid: true},
		},
		members:     map[uint]*models.Member{5: {ID: 5, ProviderID: 1, FirstName: "Asha", Phone: "9876543210"}},
		memberships: map[[2]uint]bool{{42, 5}: true},
		txs:         map[string]*models.Transaction{},
		events:      map[string]*models.PaymentWebhookEvent{},
	}
}

func (r *memRepo) GetFeePlan(id uint) (*models.FeePlan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetMember(id uint) (*models.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memRepo) GetConsumer(id uint) (*models.Consumer, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) HasMembership(consumerID, memberID uint) (bool, error) {
	return r.memberships[[2]uint{consumerID, memberID}], nil
}

func (r *memRepo) FindReusablePending(feePlanID uint, consumerID *uint, since time.Time) (*models.Transaction, error) {
	for _, t := range r.txs {
		if t.FeePlanID != feePlanID || t.Status != models.TransactionStatusPending || t.SessionCreatedAt == nil {
			continue
		}
		if consumerID != nil && (t.ConsumerID == nil || *t.ConsumerID != *consumerID) {
			continue
		}
		if !t.SessionCreatedAt.Before(since) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) CreateTransaction(t *models.Transaction) error {
	r.nextID++
	t.ID = r.nextID
	if t.CreatedAt.IsZero() && t.SessionCreatedAt != nil {
		t.CreatedAt = *t.SessionCreatedAt
	}
	cp := *t
	r.txs[t.OrderID] = &cp
	return nil
}

func (r *memRepo) GetTransactionByOrderID(orderID string) (*models.Transaction, error) {
	t, ok := r.txs[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) SaveTransaction(t *models.Transaction) error {
	cp := *t
	r.txs[t.OrderID] = &cp
	return nil
}

func (r *memRepo) SettleTransaction(t *models.Transaction, receipt string) error {
	if err := r.SaveTransaction(t); err != nil {
		return err
	}
	p := r.plans[t.FeePlanID]
	p.Status = models.FeePlanStatusPaid
	p.PaidAt = t.PaidAt
	p.Receipt = receipt
	return nil
}

func (r *memRepo) ListPendingBefore(before time.Time, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range r.txs {
		if t.Status == models.TransactionStatusPending && t.CreatedAt.Before(before) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memRepo) ListTransactions(f HistoryFilter) ([]models.Transaction, int64, error) {
	var out []models.Transaction
	for _, t := range r.txs {
		if f.ConsumerID != 0 && (t.ConsumerID == nil || *t.ConsumerID != f.ConsumerID) {
			continue
		}
		if f.ProviderID != 0 && t.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t)
	}
	total := int64(len(out))
	start := f.offset()
	if start > len(out) {
		start = len(out)
	}
	end := start + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memRepo) SummarizeTransactions(f HistoryFilter) (Summary, error) {
	s := Summary{TotalAmount: decimal.Zero}
	all, _, _ := r.ListTransactions(HistoryFilter{ConsumerID: f.ConsumerID, ProviderID: f.ProviderID, Status: f.Status, Page: 1, Limit: 1 << 20})
	for _, t := range all {
		switch t.Status {
		case models.TransactionStatusSuccess:
			s.SuccessCount++
			s.TotalAmount = s.TotalAmount.Add(t.Amount)
		case models.TransactionStatusPending:
			s.PendingCount++
		default:
			s.FailedCount++
		}
	}
	return s, nil
}

func (r *memRepo) CreateWebhookEventIfNotExists(e *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := e.Provider + "|" + e.ProviderEventID
	if stored, ok := r.events[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextID++
	e.ID = r.nextID
	cp := *e
	r.events[key] = &cp
	return true, e, nil
}

func (r *memRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeGateway struct {
	orders   []OrderRequest
	payments map[string][]GatewayPayment
	err      error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, in OrderRequest) (*OrderResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.orders = append(g.orders, in)
	return &OrderResponse{OrderID: in.OrderID, PaymentSessionID: "session_" + in.OrderID, OrderStatus: "ACTIVE"}, nil
}

func (g *fakeGateway) GetOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error) {
	return g.payments[orderID], nil
}

var payer = actor.Actor{Role: actor.RoleConsumer, ConsumerID: 42}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(repo *memRepo, gw *fakeGateway, c *clock) *Service {
	s := NewService(repo, gw)
	s.now = c.now
	n := 0
	s.orderID = func() string {
		n++
		return "order_" + string(rune('a'+n-1))
	}
	return s
}

func TestCreateOrderReusesRecentSession(t *testing.T) {
	repo, gw := newMemRepo(), &fakeGateway{}
	c := &clock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	s := newTestService(repo, gw, c)
	ctx := context.Background()
	in := CreateOrderInput{FeePlanID: 9, MemberID: 5, ProviderID: 1}

	first, err := s.CreateOrder(ctx, payer, in)
	require.NoError(t, err)
	assert.Equal(t, "order_a", first.OrderID)
	require.Len(t, gw.orders, 1)
	assert.InDelta(t, 500.0, gw.orders[0].OrderAmount, 0.001)
	assert.Equal(t, "9876543210", gw.orders[0].Customer.CustomerPhone)

	c.t = c.t.Add(29 * time.Minute)
	again, err := s.CreateOrder(ctx, payer, in)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentSessionID, again.PaymentSessionID)
	assert.Len(t, gw.orders, 1)

	c.t = c.t.Add(2 * time.Minute)
	fresh, err := s.CreateOrder(ctx, payer, in)
	require.NoError(t, err)
	assert.Equal(t, "order_b", fresh.OrderID)
	assert.Len(t, gw.orders, 2)
}

func TestCreateOrderGuards(t *testing.T) {
	s := newTestService(newMemRepo(), &fakeGateway{}, &clock{t: time.Now()})
	ctx := context.Background()

	_, err := s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 10})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	_, err = s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 77})
	assert.ErrorIs(t, err, ErrFeePlanNotFound)
	_, err = s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 9, MemberID: 6})
	assert.ErrorIs(t, err, ErrOrderMismatch)

	stranger := actor.Actor{Role: actor.RoleConsumer, ConsumerID: 7}
	_, err = s.CreateOrder(ctx, stranger, CreateOrderInput{FeePlanID: 9})
	assert.ErrorIs(t, err, ErrFeePlanNotFound)

	other := uint(7)
	_, err = s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 9, ConsumerID: &other})
	assert.ErrorIs(t, err, actor.ErrForbidden)

	provider := actor.Actor{Role: actor.RoleProvider, UserID: 1, ProviderID: 1}
	_, err = s.CreateOrder(ctx, provider, CreateOrderInput{FeePlanID: 9})
	assert.ErrorIs(t, err, actor.ErrForbidden)
}

func TestCreateOrderGatewayFailureStoresNothing(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, &fakeGateway{err: errors.New("gateway down")}, &clock{t: time.Now()})
	_, err := s.CreateOrder(context.Background(), payer, CreateOrderInput{FeePlanID: 9})
	require.Error(t, err)
	assert.Empty(t, repo.txs)
}

func TestVerifyOrderSettlesFeePlan(t *testing.T) {
	repo, gw := newMemRepo(), &fakeGateway{payments: map[string][]GatewayPayment{}}
	s := newTestService(repo, gw, &clock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 9})
	require.NoError(t, err)

	tx, err := s.VerifyOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)

	gw.payments[order.OrderID] = []GatewayPayment{{PaymentID: "p1", PaymentStatus: "SUCCESS", PaymentGroup: "upi"}}
	tx, err = s.VerifyOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, "p1", tx.GatewayPaymentID)
	require.NotNil(t, tx.PaidAt)

	plan := repo.plans[9]
	assert.Equal(t, models.FeePlanStatusPaid, plan.Status)
	assert.Equal(t, "/consumer/payments/receipt/"+order.OrderID, plan.Receipt)

	_, err = s.VerifyOrder(ctx, "order_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestHandleWebhookIsIdempotent(t *testing.T) {
	repo, gw := newMemRepo(), &fakeGateway{}
	s := newTestService(repo, gw, &clock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 9})
	require.NoError(t, err)

	payload := []byte(`{"type":"PAYMENT_FAILED_WEBHOOK","data":{"order":{"order_id":"` + order.OrderID + `"},"payment":{"cf_payment_id":"p1","payment_status":"FAILED"}}}`)
	tx, err := s.HandleWebhook(ctx, payload, true)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)

	tx, err = s.HandleWebhook(ctx, payload, true)
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Len(t, repo.events, 1)

	success := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"` + order.OrderID + `"},"payment":{"cf_payment_id":"p2","payment_status":"SUCCESS"}}}`)
	_, err = s.HandleWebhook(ctx, success, false)
	require.Error(t, err)
	assert.Equal(t, models.TransactionStatusFailed, repo.txs[order.OrderID].Status)

	retried := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"` + order.OrderID + `"},"payment":{"cf_payment_id":"p3","payment_status":"SUCCESS"}}}`)
	tx, err = s.HandleWebhook(ctx, retried, true)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, models.FeePlanStatusPaid, repo.plans[9].Status)
}

func TestReconcilePending(t *testing.T) {
	repo, gw := newMemRepo(), &fakeGateway{payments: map[string][]GatewayPayment{}}
	c := &clock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	s := newTestService(repo, gw, c)
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, payer, CreateOrderInput{FeePlanID: 9})
	require.NoError(t, err)
	gw.payments[order.OrderID] = []GatewayPayment{{PaymentID: "p1", PaymentStatus: "USER_DROPPED"}}

	n, err := s.ReconcilePending(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.t = c.t.Add(11 * time.Minute)
	n, err = s.ReconcilePending(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.TransactionStatusUserDropped, repo.txs[order.OrderID].Status)
}

func TestHistoryScopesByActor(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, &fakeGateway{}, &clock{t: time.Now()})
	ctx := context.Background()
	mine, other := uint(42), uint(7)
	repo.txs["o1"] = &models.Transaction{OrderID: "o1", ConsumerID: &mine, ProviderID: 1, Amount: decimal.NewFromInt(100), Status: models.TransactionStatusSuccess}
	repo.txs["o2"] = &models.Transaction{OrderID: "o2", ConsumerID: &mine, ProviderID: 1, Amount: decimal.NewFromInt(50), Status: models.TransactionStatusFailed}
	repo.txs["o3"] = &models.Transaction{OrderID: "o3", ConsumerID: &other, ProviderID: 2, Amount: decimal.NewFromInt(70), Status: models.TransactionStatusSuccess}

	page, err := s.History(ctx, payer, HistoryFilter{ConsumerID: 7})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, page.Pagination)
	assert.True(t, page.Summary.TotalAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), page.Summary.FailedCount)

	provider := actor.Actor{Role: actor.RoleProvider, UserID: 3, ProviderID: 2}
	page, err = s.History(ctx, provider, HistoryFilter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	assert.Equal(t, 100, page.Pagination.Limit)

	admin := actor.Actor{Role: actor.RoleAdmin, UserID: 1}
	page, err = s.History(ctx, admin, HistoryFilter{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	_, err = s.History(ctx, actor.Actor{}, HistoryFilter{})
	assert.ErrorIs(t, err, actor.ErrAnonymous)
}

func TestParseHistoryFilter(t *testing.T) {
	f, err := ParseHistoryFilter("2", "25", "success", "2024-06-01", "2024-06-30", " asha ")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, models.TransactionStatusSuccess, f.Status)
	assert.Equal(t, "asha", f.Search)
	require.NotNil(t, f.To)
	assert.Equal(t, 1, f.To.Day())
	assert.Equal(t, time.July, f.To.Month())

	for _, bad := range [][6]string{
		{"x", "", "", "", "", ""},
		{"", "x", "", "", "", ""},
		{"", "", "PAIDISH", "", "", ""},
		{"", "", "", "01/06/2024", "", ""},
		{"", "", "", "", "tomorrow", ""},
	} {
		if _, err := ParseHistoryFilter(bad[0], bad[1], bad[2], bad[3], bad[4], bad[5]); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("ParseHistoryFilter(%v) err = %v, want ErrInvalidFilter", bad, err)
		}
	}
}
