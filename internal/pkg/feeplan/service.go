package feeplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

// Service owns fee-plan persistence rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a fee-plan service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a fee-plan service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetMemberWithPlans returns a member and its fee plans, unpaid first.
func (s *Service) GetMemberWithPlans(ctx context.Context, a actor.Actor, providerID, memberID uint) (*models.Member, error) {
	_ = ctx
	if err := a.RequireProvider(providerID); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMember(providerID, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	SortSchedule(m.FeePlans)
	return m, nil
}

// Create adds a new DUE plan to a member.
func (s *Service) Create(ctx context.Context, a actor.Actor, in PlanInput) (*models.FeePlan, error) {
	if err := requireWriter(a, in.ProviderID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetMemberWithPlans(ctx, a, in.ProviderID, in.MemberID); err != nil {
		return nil, err
	}

	p := &models.FeePlan{
		ProviderID:  in.ProviderID,
		MemberID:    in.MemberID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount.Round(2),
		DueDate:     in.DueDate.Time(time.Local),
		Status:      models.FeePlanStatusDue,
	}
	if err := s.repo.CreateFeePlan(p); err != nil {
		return nil, err
	}
	log.Infof("[FeePlan] Created plan %d for member %d by %s %d", p.ID, p.MemberID, a.Role, a.UserID)
	return p, nil
}

// Update changes a plan's terms. Settled plans only accept description edits.
func (s *Service) Update(ctx context.Context, a actor.Actor, in PlanInput) (*models.FeePlan, error) {
	_ = ctx
	if in.ID == 0 {
		return nil, errors.New("fee plan id is required")
	}
	p, err := s.loadForWrite(a, in.ID)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	newDue := in.DueDate
	coreChanged := strings.TrimSpace(in.Name) != p.Name ||
		!in.Amount.Round(2).Equal(p.Amount) ||
		!newDue.Equal(DateOf(p.DueDate))
	if p.IsSettled() && coreChanged {
		return nil, ErrPaidPlanImmutable
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Amount = in.Amount.Round(2)
	p.DueDate = newDue.Time(p.DueDate.Location())
	if p.Status == models.FeePlanStatusOverdue && !newDue.Before(DateOf(s.now())) {
		p.Status = models.FeePlanStatusDue
	}
	if err := s.repo.SaveFeePlan(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes an unsettled plan.
func (s *Service) Delete(ctx context.Context, a actor.Actor, feePlanID uint) error {
	_ = ctx
	p, err := s.loadForWrite(a, feePlanID)
	if err != nil {
		return err
	}
	if p.IsSettled() {
		return ErrPaidPlanImmutable
	}
	if err := s.repo.DeleteFeePlan(p.ID); err != nil {
		return err
	}
	log.Infof("[FeePlan] Deleted plan %d of member %d by %s %d", p.ID, p.MemberID, a.Role, a.UserID)
	return nil
}

// MarkPaid toggles the offline-paid state. Marking sets PAID, unmarking
// reverts to DUE or OVERDUE depending on the calendar due date.
func (s *Service) MarkPaid(ctx context.Context, a actor.Actor, feePlanID uint, isOfflinePaid bool) (*models.FeePlan, error) {
	_ = ctx
	p, err := s.loadForWrite(a, feePlanID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if isOfflinePaid {
		if p.IsOfflinePaid {
			return p, nil
		}
		if p.Status == models.FeePlanStatusPaid {
			return nil, ErrPaidPlanImmutable
		}
		p.IsOfflinePaid = true
		p.Status = models.FeePlanStatusPaid
		p.PaidAt = &now
	} else {
		if !p.IsOfflinePaid {
			return p, nil
		}
		paidOnline, err := s.repo.HasSuccessfulTransaction(p.ID)
		if err != nil {
			return nil, err
		}
		if paidOnline {
			return nil, ErrGatewayPaid
		}
		p.IsOfflinePaid = false
		p.Status = RevertStatus(p.DueDate, now)
		p.PaidAt = nil
	}

	if err := s.repo.SaveFeePlan(p); err != nil {
		return nil, err
	}
	log.Infof("[FeePlan] Plan %d offline-paid=%v status=%s by %s %d", p.ID, p.IsOfflinePaid, p.Status, a.Role, a.UserID)
	return p, nil
}

// GetPaymentView returns the fee plan with its member and provider.
func (s *Service) GetPaymentView(ctx context.Context, feePlanID uint) (*PaymentView, error) {
	_ = ctx
	if feePlanID == 0 {
		return nil, ErrNotFound
	}
	v, err := s.repo.GetPaymentView(feePlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// SweepOverdue persists the OVERDUE status of DUE plans whose due date
// lies before now's calendar date.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx
	today := DateOf(now).Time(time.Local)
	n, err := s.repo.MarkOverdue(today)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return n, nil
}

func (s *Service) loadForWrite(a actor.Actor, feePlanID uint) (*models.FeePlan, error) {
	p, err := s.repo.GetFeePlan(feePlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := requireWriter(a, p.ProviderID); err != nil {
		return nil, err
	}
	return p, nil
}

// requireWriter applies the role's editor configuration on top of
// provider ownership.
func requireWriter(a actor.Actor, providerID uint) error {
	if err := a.RequireProvider(providerID); err != nil {
		return err
	}
	if !ConfigFor(a.Role).CanEdit {
		return ErrReadOnly
	}
	return nil
}

// PlanWriter is the part of Service the editor calls in-process.
type PlanWriter interface {
	GetMemberWithPlans(ctx context.Context, a actor.Actor, providerID, memberID uint) (*models.Member, error)
	Create(ctx context.Context, a actor.Actor, in PlanInput) (*models.FeePlan, error)
	Update(ctx context.Context, a actor.Actor, in PlanInput) (*models.FeePlan, error)
	Delete(ctx context.Context, a actor.Actor, feePlanID uint) error
}

// ActorBackend binds a PlanWriter to one actor so the editor can use it
// in-process.
type ActorBackend struct {
	Service PlanWriter
	Actor   actor.Actor
}

func (b ActorBackend) FetchMember(ctx context.Context, providerID, memberID uint) (*models.Member, error) {
	return b.Service.GetMemberWithPlans(ctx, b.Actor, providerID, memberID)
}

func (b ActorBackend) CreatePlan(ctx context.Context, in PlanInput) (*models.FeePlan, error) {
	return b.Service.Create(ctx, b.Actor, in)
}

func (b ActorBackend) UpdatePlan(ctx context.Context, in PlanInput) (*models.FeePlan, error) {
	return b.Service.Update(ctx, b.Actor, in)
}

func (b ActorBackend) DeletePlan(ctx context.Context, feePlanID uint) error {
	return b.Service.Delete(ctx, b.Actor, feePlanID)
}
