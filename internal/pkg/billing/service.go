package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

// SessionReuseWindow is how long a pending order's checkout session is
// handed out again instead of creating a new order.
const SessionReuseWindow = 30 * time.Minute

const reconcileBatchSize = 100

var (
	ErrFeePlanNotFound = errors.New("fee plan not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyPaid     = errors.New("fee plan is already paid")
	ErrOrderMismatch   = errors.New("fee plan does not belong to this member or provider")
)

// Gateway is the part of GatewayClient the service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, in OrderRequest) (*OrderResponse, error)
	GetOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
}

// Service creates gateway orders for fee plans and keeps transactions in
// sync with the gateway.
type Service struct {
	repo    Repository
	gateway Gateway
	now     func() time.Time
	orderID func() string
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		now:     time.Now,
		orderID: func() string { return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway)
}

// ReceiptPath is the receipt page of a paid order.
func ReceiptPath(orderID string) string {
	return "/consumer/payments/receipt/" + orderID
}

// CreateOrder returns a checkout session for the fee plan. A pending order
// of the same plan and payer younger than SessionReuseWindow is reused.
func (s *Service) CreateOrder(ctx context.Context, a actor.Actor, in CreateOrderInput) (*OrderResponse, error) {
	if err := a.RequireConsumer(); err != nil {
		return nil, err
	}
	if in.ConsumerID != nil && *in.ConsumerID != a.ConsumerID {
		return nil, actor.ErrForbidden
	}
	plan, err := s.repo.GetFeePlan(in.FeePlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeePlanNotFound
		}
		return nil, err
	}
	if (in.MemberID != 0 && plan.MemberID != in.MemberID) || (in.ProviderID != 0 && plan.ProviderID != in.ProviderID) {
		return nil, ErrOrderMismatch
	}
	ok, err := s.repo.HasMembership(a.ConsumerID, plan.MemberID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFeePlanNotFound
	}
	if plan.IsSettled() {
		return nil, ErrAlreadyPaid
	}

	consumerID := a.ConsumerID
	now := s.now()
	existing, err := s.repo.FindReusablePending(plan.ID, &consumerID, now.Add(-SessionReuseWindow))
	if err == nil {
		log.Infof("[Billing] Reusing order %s for fee plan %d", existing.OrderID, plan.ID)
		return &OrderResponse{OrderID: existing.OrderID, PaymentSessionID: existing.PaymentSessionID, OrderStatus: "ACTIVE"}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	member, err := s.repo.GetMember(plan.MemberID)
	if err != nil {
		return nil, err
	}
	customer := CustomerDetails{
		CustomerID:    fmt.Sprintf("consumer_%d", consumerID),
		CustomerName:  member.FullName(),
		CustomerEmail: member.Email,
		CustomerPhone: member.Phone,
	}
	if c, err := s.repo.GetConsumer(consumerID); err == nil {
		if c.Name != "" {
			customer.CustomerName = c.Name
		}
		if c.Email != "" {
			customer.CustomerEmail = c.Email
		}
		if c.Phone != "" {
			customer.CustomerPhone = c.Phone
		}
	}

	req := OrderRequest{
		OrderID:       s.orderID(),
		OrderAmount:   plan.Amount.Round(2).InexactFloat64(),
		OrderCurrency: "INR",
		Customer:      customer,
		OrderNote:     plan.Name,
		OrderTags: map[string]string{
			"feePlanId":  fmt.Sprint(plan.ID),
			"memberId":   fmt.Sprint(plan.MemberID),
			"providerId": fmt.Sprint(plan.ProviderID),
		},
	}
	resp, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		log.Errorf("[Billing] Create order for fee plan %d failed: %v", plan.ID, err)
		return nil, err
	}

	payload, _ := json.Marshal(resp)
	t := &models.Transaction{
		OrderID:          resp.OrderID,
		FeePlanID:        plan.ID,
		MemberID:         plan.MemberID,
		ProviderID:       plan.ProviderID,
		ConsumerID:       &consumerID,
		Amount:           plan.Amount.Round(2),
		Currency:         "INR",
		Status:           models.TransactionStatusPending,
		PaymentSessionID: resp.PaymentSessionID,
		SessionCreatedAt: &now,
		GatewayPayload:   datatypes.JSON(payload),
	}
	if err := s.repo.CreateTransaction(t); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Created order %s for fee plan %d", t.OrderID, plan.ID)
	return resp, nil
}

// VerifyOrder asks the gateway for the order's payments and applies the
// resulting status.
func (s *Service) VerifyOrder(ctx context.Context, orderID string) (*models.Transaction, error) {
	t, err := s.getTransaction(orderID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TransactionStatusSuccess {
		return t, nil
	}
	payments, err := s.gateway.GetOrderPayments(ctx, t.OrderID)
	if err != nil {
		return nil, err
	}
	status, payment := SummarizePayments(payments)
	if status == models.TransactionStatusNotAttempted {
		// Checkout not completed yet.
		return t, nil
	}
	if err := s.apply(t, status, payment); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) getTransaction(orderID string) (*models.Transaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrOrderNotFound
	}
	t, err := s.repo.GetTransactionByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return t, nil
}

// apply moves t to status. A successful transaction is final and also
// settles its fee plan.
func (s *Service) apply(t *models.Transaction, status string, p *GatewayPayment) error {
	if t.Status == models.TransactionStatusSuccess || (t.Status == status && p == nil) {
		return nil
	}
	t.Status = status
	if p != nil {
		t.GatewayPaymentID = p.PaymentID
		t.PaymentMethod = p.PaymentGroup
		if raw, err := json.Marshal(p); err == nil {
			t.GatewayPayload = datatypes.JSON(raw)
		}
	}
	if status != models.TransactionStatusSuccess {
		return s.repo.SaveTransaction(t)
	}
	now := s.now()
	t.PaidAt = &now
	if err := s.repo.SettleTransaction(t, ReceiptPath(t.OrderID)); err != nil {
		return err
	}
	log.Infof("[Billing] Order %s paid, fee plan %d settled", t.OrderID, t.FeePlanID)
	return nil
}

// HandleWebhook stores a webhook delivery once and applies its payment
// status. Replayed deliveries that were already processed are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureValid bool) (*models.Transaction, error) {
	event, parseErr := ParseWebhookEvent(payload)
	in := WebhookEventInput{
		Provider:       GatewayName,
		PayloadJSON:    string(payload),
		SignatureValid: signatureValid,
	}
	if event != nil {
		in.ProviderEventID = event.EventID()
		in.EventType = event.Type
		in.OrderID = event.OrderID
	} else {
		in.EventType = "unparsed"
	}
	created, stored, err := s.RecordWebhookEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	if !created && stored.ProcessedAt != nil {
		log.Infof("[Billing] Webhook event %s already processed", stored.ProviderEventID)
		return nil, nil
	}

	var t *models.Transaction
	procErr := parseErr
	if procErr == nil && !signatureValid {
		procErr = errors.New("invalid webhook signature")
	}
	if procErr == nil {
		t, procErr = s.applyEvent(event)
	}
	if err := s.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Warnf("[Billing] Failed to mark webhook %d processed: %v", stored.ID, err)
	}
	return t, procErr
}

func (s *Service) applyEvent(e *WebhookEvent) (*models.Transaction, error) {
	t, err := s.getTransaction(e.OrderID)
	if err != nil {
		return nil, err
	}
	if e.Payment.PaymentStatus == "" {
		return t, nil
	}
	p := e.Payment
	if err := s.apply(t, PaymentStatusToTransactionStatus(p.PaymentStatus), &p); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		OrderID:         strings.TrimSpace(in.OrderID),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ReconcilePending re-verifies pending orders created before now-olderThan
// and returns how many changed status.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := s.repo.ListPendingBefore(s.now().Add(-olderThan), reconcileBatchSize)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		t, err := s.VerifyOrder(ctx, p.OrderID)
		if err != nil {
			log.Warnf("[Billing] Reconcile order %s failed: %v", p.OrderID, err)
			continue
		}
		if t.Status != models.TransactionStatusPending {
			changed++
		}
	}
	if changed > 0 {
		log.Infof("[Billing] Reconciled %d of %d pending orders", changed, len(pending))
	}
	return changed, nil
}

// History returns a page of the actor's transactions. Consumers see their
// own payments, providers those of their members, staff everything.
func (s *Service) History(ctx context.Context, a actor.Actor, f HistoryFilter) (*HistoryPage, error) {
	_ = ctx
	if !a.IsAuthenticated() {
		return nil, actor.ErrAnonymous
	}
	switch a.Role {
	case actor.RoleConsumer:
		if a.ConsumerID == 0 {
			return nil, actor.ErrForbidden
		}
		f.ConsumerID = a.ConsumerID
		f.ProviderID = 0
	case actor.RoleProvider:
		if a.ProviderID == 0 {
			return nil, actor.ErrForbidden
		}
		f.ProviderID = a.ProviderID
		f.ConsumerID = 0
	case actor.RoleAdmin, actor.RoleModerator:
	default:
		return nil, actor.ErrForbidden
	}
	f.normalize()

	txs, total, err := s.repo.ListTransactions(f)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.SummarizeTransactions(f)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return &HistoryPage{Transactions: txs, Pagination: newPagination(f, total), Summary: summary}, nil
}

// GetOrder returns an order visible to the actor.
func (s *Service) GetOrder(ctx context.Context, a actor.Actor, orderID string) (*models.Transaction, error) {
	_ = ctx
	t, err := s.getTransaction(orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case a.Role == actor.RoleConsumer:
		if t.ConsumerID == nil || *t.ConsumerID != a.ConsumerID {
			return nil, ErrOrderNotFound
		}
	case !a.CanManageProvider(t.ProviderID):
		return nil, ErrOrderNotFound
	}
	return t, nil
}
