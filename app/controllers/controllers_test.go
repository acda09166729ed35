package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

var (
	providerActor = actor.Actor{Role: actor.RoleProvider, UserID: 3, ProviderID: 7, Name: "Asha"}
	consumerActor = actor.Actor{Role: actor.RoleConsumer, ConsumerID: 42, Name: "Ravi"}
)

type fakeFeePlans struct {
	FeePlanService
	gotProviderID uint
	createErr     error
	markErr       error
}

func (f *fakeFeePlans) GetMemberWithPlans(ctx context.Context, a actor.Actor, providerID, memberID uint) (*models.Member, error) {
	f.gotProviderID = providerID
	return &models.Member{ID: memberID, ProviderID: providerID, FirstName: "Meera"}, nil
}

func (f *fakeFeePlans) Create(ctx context.Context, a actor.Actor, in feeplan.PlanInput) (*models.FeePlan, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.FeePlan{ID: 11, MemberID: in.MemberID, Name: in.Name, Amount: in.Amount}, nil
}

func (f *fakeFeePlans) MarkPaid(ctx context.Context, a actor.Actor, feePlanID uint, isOfflinePaid bool) (*models.FeePlan, error) {
	if f.markErr != nil {
		return nil, f.markErr
	}
	return &models.FeePlan{ID: feePlanID, IsOfflinePaid: isOfflinePaid}, nil
}

type fakePayments struct {
	PaymentService
	webhookTx  *models.Transaction
	webhookErr error
	order      *models.Transaction
	verified   *models.Transaction
	verifyErr  error
	sawValid   *bool
}

func (f *fakePayments) HandleWebhook(ctx context.Context, payload []byte, signatureValid bool) (*models.Transaction, error) {
	f.sawValid = &signatureValid
	if !signatureValid {
		return nil, errors.New("signature")
	}
	return f.webhookTx, f.webhookErr
}

func (f *fakePayments) GetOrder(ctx context.Context, a actor.Actor, orderID string) (*models.Transaction, error) {
	if f.order == nil || f.order.OrderID != orderID {
		return nil, billing.ErrOrderNotFound
	}
	return f.order, nil
}

func (f *fakePayments) VerifyOrder(ctx context.Context, orderID string) (*models.Transaction, error) {
	return f.verified, f.verifyErr
}

func (f *fakePayments) History(ctx context.Context, a actor.Actor, hf billing.HistoryFilter) (*billing.HistoryPage, error) {
	return &billing.HistoryPage{Transactions: []models.Transaction{{OrderID: "o-1"}}}, nil
}

type fakeMemberships struct {
	MembershipService
	claimErr  error
	search    *membership.SearchOutcome
	searchErr error
}

func (f *fakeMemberships) Search(ctx context.Context, consumerID uint, query string) (*membership.SearchOutcome, error) {
	return f.search, f.searchErr
}

func (f *fakeMemberships) SearchProviders(ctx context.Context, category, region, query string, limit int) ([]membership.ProviderResult, error) {
	return []membership.ProviderResult{{ID: 7, Name: "Sunrise Academy"}}, nil
}

func (f *fakeMemberships) Claim(ctx context.Context, a actor.Actor, req membership.ClaimRequest) (*models.ConsumerMembership, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &models.ConsumerMembership{ID: 5, ConsumerID: req.ConsumerID}, nil
}

type fakeJobs struct {
	enqueued []string
}

func (f *fakeJobs) EnqueueVerifyOrder(ctx context.Context, orderID, source string) error {
	f.enqueued = append(f.enqueued, orderID+"/"+source)
	return nil
}

// testApp serves routes as the given actor.
func testApp(a actor.Actor, register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.New(a))
		return c.Next()
	})
	register(app)
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestProviderIsScopedToOwnProvider(t *testing.T) {
	plans := &fakeFeePlans{}
	ac := NewAPIController(&Deps{FeePlans: plans})
	app := testApp(providerActor, func(app *fiber.App) {
		app.Get("/fee-plans", ac.HandleGetMemberFeePlans)
	})

	status, env := doJSON(t, app, http.MethodGet, "/fee-plans?providerId=99&memberId=4", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, uint(7), plans.gotProviderID)

	status, env = doJSON(t, app, http.MethodGet, "/fee-plans?providerId=99", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bad_request", env.Error)
}

func TestCreateFeePlanErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: &feeplan.ValidationError{Message: "invalid fee plan", Fields: []feeplan.FieldError{{Field: feeplan.FieldAmount, Message: "amount must be greater than zero"}}}, wantStatus: fiber.StatusUnprocessableEntity, wantCode: "validation_failed"},
		{name: "paid plan", err: feeplan.ErrPaidPlanImmutable, wantStatus: fiber.StatusConflict, wantCode: "invalid_state"},
		{name: "other provider", err: actor.ErrForbidden, wantStatus: fiber.StatusForbidden, wantCode: "forbidden"},
		{name: "missing member", err: feeplan.ErrMemberNotFound, wantStatus: fiber.StatusNotFound, wantCode: "not_found"},
		{name: "database down", err: errors.New("dial tcp: refused"), wantStatus: fiber.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tt := range tests {
		ac := NewAPIController(&Deps{FeePlans: &fakeFeePlans{createErr: tt.err}})
		app := testApp(providerActor, func(app *fiber.App) {
			app.Post("/fee-plans", ac.HandleCreateFeePlan)
		})
		status, env := doJSON(t, app, http.MethodPost, "/fee-plans", fiber.Map{
			"feePlan": fiber.Map{"memberId": 4, "name": "Tuition", "amount": "0", "dueDate": "2024-06-01"},
		})
		if status != tt.wantStatus || env.Error != tt.wantCode {
			t.Fatalf("%s: got %d %q, want %d %q", tt.name, status, env.Error, tt.wantStatus, tt.wantCode)
		}
		if tt.wantStatus == fiber.StatusInternalServerError {
			assert.Equal(t, msgInternal, env.Message, tt.name)
		}
	}
}

func TestCreateFeePlanReturnsCreated(t *testing.T) {
	ac := NewAPIController(&Deps{FeePlans: &fakeFeePlans{}})
	app := testApp(providerActor, func(app *fiber.App) {
		app.Post("/fee-plans", ac.HandleCreateFeePlan)
	})
	status, env := doJSON(t, app, http.MethodPost, "/fee-plans", fiber.Map{
		"feePlan": fiber.Map{"memberId": 4, "name": "Tuition", "amount": "1500.50", "dueDate": "2024-06-01"},
	})
	require.Equal(t, fiber.StatusCreated, status)
	var plan models.FeePlan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, uint(11), plan.ID)
	assert.True(t, plan.Amount.Equal(decimal.RequireFromString("1500.5")))
}

func TestMarkPaidGatewayConflict(t *testing.T) {
	ac := NewAPIController(&Deps{FeePlans: &fakeFeePlans{markErr: feeplan.ErrGatewayPaid}})
	app := testApp(providerActor, func(app *fiber.App) {
		app.Post("/fee-plans/mark-paid", ac.HandleMarkPaid)
	})
	status, env := doJSON(t, app, http.MethodPost, "/fee-plans/mark-paid", fiber.Map{"feePlanId": 3, "isOfflinePaid": false})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, feeplan.ErrGatewayPaid.Error(), env.Message)
}

func TestPaymentWebhook(t *testing.T) {
	const secret = "whsec"
	payload := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"o-1"}}}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	tests := []struct {
		name       string
		signature  string
		tx         *models.Transaction
		err        error
		wantStatus int
		wantBody   string
		wantJobs   int
	}{
		{name: "bad signature", signature: "bm9wZQ==", wantStatus: fiber.StatusUnauthorized, wantBody: "invalid_signature"},
		{name: "final", signature: billing.SignWebhook(payload, ts, secret), tx: &models.Transaction{OrderID: "o-1", Status: models.TransactionStatusSuccess}, wantStatus: fiber.StatusOK, wantBody: `"status":"SUCCESS"`},
		{name: "pending", signature: billing.SignWebhook(payload, ts, secret), tx: &models.Transaction{OrderID: "o-1", Status: models.TransactionStatusPending}, wantStatus: fiber.StatusOK, wantJobs: 1},
		{name: "duplicate", signature: billing.SignWebhook(payload, ts, secret), wantStatus: fiber.StatusOK, wantBody: `"duplicate":true`},
		{name: "unknown order", signature: billing.SignWebhook(payload, ts, secret), err: billing.ErrOrderNotFound, wantStatus: fiber.StatusOK, wantBody: `"ignored":true`},
	}
	for _, tt := range tests {
		jobs := &fakeJobs{}
		payments := &fakePayments{webhookTx: tt.tx, webhookErr: tt.err}
		ac := NewAPIController(&Deps{Payments: payments, OrderJobs: jobs, WebhookSecret: secret})
		app := testApp(actor.Actor{}, func(app *fiber.App) {
			app.Post("/webhook", ac.HandlePaymentWebhook)
		})

		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
		req.Header.Set(billing.TimestampHeader, ts)
		req.Header.Set(billing.SignatureHeader, tt.signature)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tt.wantStatus {
			t.Fatalf("%s: status %d, want %d (%s)", tt.name, resp.StatusCode, tt.wantStatus, body)
		}
		if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
			t.Fatalf("%s: body %s does not contain %s", tt.name, body, tt.wantBody)
		}
		assert.Len(t, jobs.enqueued, tt.wantJobs, tt.name)
		require.NotNil(t, payments.sawValid, tt.name)
	}
}

func TestClaimConflictCarriesMembershipID(t *testing.T) {
	ac := NewAPIController(&Deps{Memberships: &fakeMemberships{claimErr: &membership.ConflictError{MembershipID: 12}}})
	app := testApp(consumerActor, func(app *fiber.App) {
		app.Post("/memberships", ac.HandleClaimMembership)
	})
	status, env := doJSON(t, app, http.MethodPost, "/memberships", membership.ClaimRequest{ConsumerID: 42, ProviderID: 7, MemberUniqueID: "MBR1"})
	require.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", env.Error)
	assert.JSONEq(t, `{"membershipId":12}`, string(env.Data))
}

func TestProviderSearchEchoesGeneration(t *testing.T) {
	ac := NewAPIController(&Deps{Memberships: &fakeMemberships{}})
	app := testApp(consumerActor, func(app *fiber.App) {
		app.Get("/providers/search", ac.HandleProviderSearch)
	})
	status, env := doJSON(t, app, http.MethodGet, "/providers/search?category=COACHING&region=KA&search=sun&gen=17", nil)
	require.Equal(t, fiber.StatusOK, status)
	var data struct {
		Providers []membership.ProviderResult `json:"providers"`
		Gen       uint64                      `json:"gen"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, uint64(17), data.Gen)
	assert.Len(t, data.Providers, 1)
}

func TestHistoryRejectsBadFilter(t *testing.T) {
	ac := NewAPIController(&Deps{Payments: &fakePayments{}})
	app := testApp(consumerActor, func(app *fiber.App) {
		app.Get("/payments", ac.HandleConsumerPaymentHistory)
	})
	status, env := doJSON(t, app, http.MethodGet, "/payments?page=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bad_request", env.Error)

	status, env = doJSON(t, app, http.MethodGet, "/payments?page=1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"o-1"`)
}

func TestPayResultOutcome(t *testing.T) {
	jobs := &fakeJobs{}
	cc := NewConsumerController(&Deps{OrderJobs: jobs})
	app := testApp(consumerActor, func(app *fiber.App) {
		app.Post("/consumer/pay/result", cc.HandlePayResult)
	})

	_, env := doJSON(t, app, http.MethodPost, "/consumer/pay/result", fiber.Map{
		"orderId": "o-9", "result": fiber.Map{"paymentDetails": fiber.Map{"paymentMessage": "ok"}},
	})
	assert.JSONEq(t, `{"kind":"completed","orderId":"o-9","toast":"Payment successful","navigate":"/consumer/payments/verify/o-9"}`, string(env.Data))
	assert.Empty(t, jobs.enqueued)

	_, env = doJSON(t, app, http.MethodPost, "/consumer/pay/result", fiber.Map{
		"orderId": "o-9", "result": fiber.Map{"redirect": true},
	})
	assert.Contains(t, string(env.Data), `"kind":"processing"`)
	assert.Equal(t, []string{"o-9/pay_page"}, jobs.enqueued)
}

func TestVerifyStatusFragment(t *testing.T) {
	pending := &models.Transaction{OrderID: "o-2", Status: models.TransactionStatusPending, Amount: decimal.RequireFromString("250"), Currency: "INR"}
	tests := []struct {
		name     string
		verified *models.Transaction
		verifyEr error
		want     []string
		jobs     int
	}{
		{name: "still pending", verified: pending, want: []string{`hx-get="/consumer/payments/verify/o-2/status"`, "Waiting"}},
		{name: "settled", verified: &models.Transaction{OrderID: "o-2", Status: models.TransactionStatusSuccess, Amount: decimal.RequireFromString("250"), Currency: "INR"}, want: []string{"250.00 INR", "View receipt"}},
		{name: "gateway down", verifyEr: errors.New("timeout"), want: []string{"hx-trigger"}, jobs: 1},
	}
	for _, tt := range tests {
		jobs := &fakeJobs{}
		payments := &fakePayments{order: pending, verified: tt.verified, verifyErr: tt.verifyEr}
		cc := NewConsumerController(&Deps{Payments: payments, OrderJobs: jobs})
		app := testApp(consumerActor, func(app *fiber.App) {
			app.Get("/consumer/payments/verify/:orderId/status", cc.HandleVerifyStatus)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/consumer/payments/verify/o-2/status", nil), -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, tt.name)
		for _, w := range tt.want {
			if !strings.Contains(string(body), w) {
				t.Fatalf("%s: %s missing %q", tt.name, body, w)
			}
		}
		assert.Len(t, jobs.enqueued, tt.jobs, tt.name)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{actor.ErrAnonymous, fiber.StatusUnauthorized},
		{kyc.ErrInvalidTransition, fiber.StatusConflict},
		{kyc.ErrRemarksRequired, fiber.StatusBadRequest},
		{membership.ErrSearchQueryTooSmall, fiber.StatusBadRequest},
		{billing.ErrGatewayNotConfigured, fiber.StatusServiceUnavailable},
		{billing.ErrAlreadyPaid, fiber.StatusConflict},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := classify(tt.err); got != tt.want {
			t.Fatalf("classify(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	assert.Equal(t, msgInternal, errorMessage(errors.New("sql: connection reset")))
	assert.Equal(t, "invalid fee plan", errorMessage(&feeplan.ValidationError{Message: "invalid fee plan"}))
}

