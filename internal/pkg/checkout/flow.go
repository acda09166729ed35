package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
)

// ModalTarget opens the hosted checkout as an overlay on the pay page.
const ModalTarget = "_modal"

const (
	msgSessionFailed    = "failed to create payment session"
	msgPaymentFailed    = "Payment failed. Please try again."
	msgProcessing       = "Payment is being processed"
	msgPaymentSucceeded = "Payment successful"
	msgCheckoutFailed   = "Something went wrong while processing the payment"
	msgLoadFailed       = "Failed to load payment details"

	// MsgMissingFeePlanID is shown when the pay page is opened without a plan.
	MsgMissingFeePlanID = "Fee plan ID is required"
)

var (
	ErrMissingFeePlanID = errors.New("fee plan ID is required")
	ErrSessionFailed    = errors.New(msgSessionFailed)
	ErrAlreadyPaid      = errors.New("fee plan is already paid")
)

// OrderRequest is the body of the create-order call.
type OrderRequest struct {
	FeePlanID  uint  `json:"feePlanId"`
	MemberID   uint  `json:"memberId"`
	ProviderID uint  `json:"providerId"`
	ConsumerID *uint `json:"consumerId,omitempty"`
}

// OrderResponse carries the gateway session of a created order.
type OrderResponse struct {
	PaymentSessionID string `json:"payment_session_id"`
	OrderID          string `json:"order_id"`
}

// Backend serves the pay page.
type Backend interface {
	GetPaymentView(ctx context.Context, feePlanID uint) (*feeplan.PaymentView, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
}

// Checkout opens the gateway's hosted checkout.
type Checkout interface {
	Open(ctx context.Context, paymentSessionID, target string) (Result, error)
}

// ResultError is the error object the checkout reports.
type ResultError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Result is what the hosted checkout resolves with. At most one of the
// fields is expected to be set.
type Result struct {
	Error          *ResultError   `json:"error,omitempty"`
	Redirect       bool           `json:"redirect,omitempty"`
	PaymentDetails map[string]any `json:"paymentDetails,omitempty"`
}

// OutcomeKind classifies a checkout result.
type OutcomeKind string

const (
	OutcomeFailed     OutcomeKind = "failed"
	OutcomeProcessing OutcomeKind = "processing"
	OutcomeCompleted  OutcomeKind = "completed"
)

// Outcome is the follow-up after a pay attempt. Navigate is empty when the
// consumer stays on the pay page.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	OrderID  string      `json:"orderId,omitempty"`
	Toast    string      `json:"toast"`
	Navigate string      `json:"navigate,omitempty"`
}

// VerifyPath is the verification page of an order.
func VerifyPath(orderID string) string {
	return "/consumer/payments/verify/" + orderID
}

// InterpretResult maps a checkout result to its outcome. An error wins over
// the other fields, a redirect over payment details.
func InterpretResult(orderID string, r Result) Outcome {
	switch {
	case r.Error != nil:
		msg := strings.TrimSpace(r.Error.Message)
		if msg == "" {
			msg = msgPaymentFailed
		}
		return Outcome{Kind: OutcomeFailed, OrderID: orderID, Toast: msg}
	case r.Redirect:
		return Outcome{Kind: OutcomeProcessing, OrderID: orderID, Toast: msgProcessing}
	case r.PaymentDetails != nil:
		return Outcome{Kind: OutcomeCompleted, OrderID: orderID, Toast: msgPaymentSucceeded, Navigate: VerifyPath(orderID)}
	}
	return Outcome{Kind: OutcomeFailed, OrderID: orderID, Toast: msgCheckoutFailed}
}

// ParseFeePlanID reads the fee plan id navigation parameter.
func ParseFeePlanID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingFeePlanID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrMissingFeePlanID, raw)
	}
	return uint(id), nil
}

// Page is the loaded pay page.
type Page struct {
	View          feeplan.PaymentView   `json:"view"`
	DisplayStatus feeplan.DisplayStatus `json:"displayStatus"`
	StatusLabel   string                `json:"statusLabel"`
	// Settled pages show the receipt instead of a pay action.
	Settled bool   `json:"settled"`
	Receipt string `json:"receipt,omitempty"`
}

// LoadError is a failure to load the pay page. Terminal errors offer only
// Back, others also Retry.
type LoadError struct {
	Message  string
	Terminal bool
	Err      error
}

func (e *LoadError) Error() string { return e.Message }
func (e *LoadError) Unwrap() error { return e.Err }

// Flow runs one consumer's pay page.
type Flow struct {
	backend  Backend
	checkout Checkout
	actor    actor.Actor
	now      func() time.Time
}

func NewFlow(backend Backend, co Checkout, a actor.Actor) *Flow {
	return &Flow{backend: backend, checkout: co, actor: a, now: time.Now}
}

// Load fetches the pay page of the raw feePlanId parameter.
func (f *Flow) Load(ctx context.Context, rawFeePlanID string) (*Page, error) {
	id, err := ParseFeePlanID(rawFeePlanID)
	if err != nil {
		return nil, &LoadError{Message: MsgMissingFeePlanID, Terminal: true, Err: err}
	}
	view, err := f.backend.GetPaymentView(ctx, id)
	if err != nil {
		return nil, &LoadError{Message: messageOr(err, msgLoadFailed), Err: err}
	}
	if view == nil {
		return nil, &LoadError{Message: msgLoadFailed}
	}
	ds := feeplan.ClassifyPlan(view.FeePlan, f.now())
	return &Page{
		View:          *view,
		DisplayStatus: ds,
		StatusLabel:   ds.Label(),
		Settled:       view.FeePlan.Status == models.FeePlanStatusPaid,
		Receipt:       view.FeePlan.Receipt,
	}, nil
}

// Pay creates an order for the page's fee plan and runs the checkout. The
// returned outcome is always safe to show; failures keep the consumer on
// the page with the pay action enabled again.
func (f *Flow) Pay(ctx context.Context, p *Page) (out Outcome) {
	if p == nil || p.Settled {
		return Outcome{Kind: OutcomeFailed, Toast: ErrAlreadyPaid.Error()}
	}
	req := OrderRequest{
		FeePlanID:  p.View.FeePlan.ID,
		MemberID:   p.View.Member.ID,
		ProviderID: p.View.Provider.ID,
	}
	if f.actor.Role == actor.RoleConsumer && f.actor.ConsumerID != 0 {
		cid := f.actor.ConsumerID
		req.ConsumerID = &cid
	}

	order, err := f.backend.CreateOrder(ctx, req)
	if err != nil || order == nil || order.PaymentSessionID == "" || order.OrderID == "" {
		if err != nil {
			log.Warnf("[Checkout] Create order for fee plan %d failed: %v", req.FeePlanID, err)
		}
		return Outcome{Kind: OutcomeFailed, Toast: msgSessionFailed}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Checkout] Checkout for order %s panicked: %v", order.OrderID, r)
			out = Outcome{Kind: OutcomeFailed, OrderID: order.OrderID, Toast: msgCheckoutFailed}
		}
	}()
	res, err := f.checkout.Open(ctx, order.PaymentSessionID, ModalTarget)
	if err != nil {
		log.Warnf("[Checkout] Checkout for order %s failed: %v", order.OrderID, err)
		return Outcome{Kind: OutcomeFailed, OrderID: order.OrderID, Toast: msgCheckoutFailed}
	}
	return InterpretResult(order.OrderID, res)
}

// messageOr prefers the error's own text unless it is empty.
func messageOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
