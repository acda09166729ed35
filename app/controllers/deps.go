package controllers

import (
	"context"
	"io"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/app/repository"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/apiclient"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/docstore"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/statistics"
)

// FeePlanService is the fee plan API used by the handlers.
type FeePlanService interface {
	GetMemberWithPlans(ctx context.Context, a actor.Actor, providerID, memberID uint) (*models.Member, error)
	Create(ctx context.Context, a actor.Actor, in feeplan.PlanInput) (*models.FeePlan, error)
	Update(ctx context.Context, a actor.Actor, in feeplan.PlanInput) (*models.FeePlan, error)
	Delete(ctx context.Context, a actor.Actor, feePlanID uint) error
	MarkPaid(ctx context.Context, a actor.Actor, feePlanID uint, isOfflinePaid bool) (*models.FeePlan, error)
	GetPaymentView(ctx context.Context, feePlanID uint) (*feeplan.PaymentView, error)
}

// EditorStore keeps portal edit buffers between requests.
type EditorStore interface {
	Load(ctx context.Context, userID, providerID, memberID uint) (*feeplan.Editor, error)
	Save(ctx context.Context, userID uint, e *feeplan.Editor) error
	Clear(ctx context.Context, userID, memberID uint) error
}

// PaymentService creates, verifies and lists gateway orders.
type PaymentService interface {
	CreateOrder(ctx context.Context, a actor.Actor, in billing.CreateOrderInput) (*billing.OrderResponse, error)
	VerifyOrder(ctx context.Context, orderID string) (*models.Transaction, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureValid bool) (*models.Transaction, error)
	History(ctx context.Context, a actor.Actor, f billing.HistoryFilter) (*billing.HistoryPage, error)
	GetOrder(ctx context.Context, a actor.Actor, orderID string) (*models.Transaction, error)
}

// KYCService runs provider verification.
type KYCService interface {
	Get(ctx context.Context, a actor.Actor, providerID uint) (*kyc.View, error)
	SubmitOrganization(ctx context.Context, a actor.Actor, form kyc.OrganizationForm, docs map[string]kyc.Document) (*models.ProviderVerification, error)
	SubmitIndividual(ctx context.Context, a actor.Actor, form kyc.IndividualForm, docs map[string]kyc.Document) (*models.ProviderVerification, error)
	Review(ctx context.Context, a actor.Actor, verificationID uint, decision kyc.Decision, remarks string) (*models.ProviderVerification, error)
	List(ctx context.Context, a actor.Actor, status string, page, limit int) ([]models.ProviderVerification, int64, error)
	GetByID(ctx context.Context, a actor.Actor, id uint) (*models.ProviderVerification, error)
	OpenDocument(ctx context.Context, key string) (io.ReadCloser, *docstore.Object, error)
}

// MembershipService links consumers to members.
type MembershipService interface {
	SearchProviders(ctx context.Context, category, region, query string, limit int) ([]membership.ProviderResult, error)
	FindMemberByUniqueID(ctx context.Context, providerID uint, uniqueID string) (*models.Member, error)
	Claim(ctx context.Context, a actor.Actor, req membership.ClaimRequest) (*models.ConsumerMembership, error)
	ListForConsumer(ctx context.Context, a actor.Actor) ([]membership.MembershipCard, error)
	Schedule(ctx context.Context, a actor.Actor, membershipID uint) (*membership.ScheduleView, error)
	Search(ctx context.Context, consumerID uint, query string) (*membership.SearchOutcome, error)
	LoadWizard(ctx context.Context, consumerID uint) *membership.Wizard
	SaveWizard(ctx context.Context, consumerID uint, w *membership.Wizard) error
	ResetWizard(ctx context.Context, consumerID uint) error
}

// DashboardService serves the cached admin statistics.
type DashboardService interface {
	Dashboard(ctx context.Context) (*statistics.Dashboard, error)
	Refresh(ctx context.Context) (*statistics.Dashboard, error)
}

// OrderJobs schedules gateway verification of an order.
type OrderJobs interface {
	EnqueueVerifyOrder(ctx context.Context, orderID, source string) error
}

// CaptchaVerifier checks a registration captcha token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// APIKeyUsage counts requests made with an API key.
type APIKeyUsage interface {
	Add(ctx context.Context, settingsID uint) error
}

// Sweeps runs the periodic maintenance tasks on demand.
type Sweeps interface {
	RunOverdueSweepOnce() int64
	RunReconcileOnce() int
}

// Deps are the collaborators of all controllers. DocumentSecret signs admin
// document links and CheckoutMode is the gateway SDK mode of the pay page.
type Deps struct {
	Repos           *repository.Repositories
	FeePlans        FeePlanService
	Editors         EditorStore
	Payments        PaymentService
	KYC             KYCService
	Memberships     MembershipService
	Stats           DashboardService
	OrderJobs       OrderJobs
	Captcha         CaptchaVerifier
	Sweeps          Sweeps
	APIUsage        APIKeyUsage
	WebhookSecret   string
	DocumentSecret  string
	CheckoutMode    string
	HCaptchaSiteKey string
	// PortalAPI is set when the portal pages call a remote API.
	PortalAPI *apiclient.Client
}

var deps *Deps

// Initialize sets the dependencies used by every handler.
func Initialize(d Deps) {
	deps = &d
	apiController = NewAPIController(deps)
	authController = NewAuthController(deps)
	adminController = NewAdminController(deps)
	providerController = NewProviderController(deps)
	consumerController = NewConsumerController(deps)
}

// GetDeps returns the configured dependencies.
func GetDeps() *Deps {
	if deps == nil {
		panic("controllers: Initialize was not called")
	}
	return deps
}
