package feeplan

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
	members    map[uint]*models.Member
	plans      map[uint]*models.FeePlan
	paidOnline map[uint]bool
	nextID     uint
	overdueCut time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		members:    map[uint]*models.Member{7: {ID: 7, ProviderID: 3, FirstName: "Asha"}},
		plans:      map[uint]*models.FeePlan{},
		paidOnline: map[uint]bool{},
	}
}

func (r *memRepo) add(p models.FeePlan) *models.FeePlan {
	r.nextID++
	p.ID = r.nextID
	r.plans[p.ID] = &p
	return &p
}

func (r *memRepo) GetMember(providerID, memberID uint) (*models.Member, error) {
	m, ok := r.members[memberID]
	if !ok || m.ProviderID != providerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	cp.FeePlans = nil
	for _, p := range r.plans {
		if p.MemberID == memberID {
			cp.FeePlans = append(cp.FeePlans, *p)
		}
	}
	return &cp, nil
}

func (r *memRepo) GetFeePlan(id uint) (*models.FeePlan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) CreateFeePlan(p *models.FeePlan) error {
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memRepo) SaveFeePlan(p *models.FeePlan) error {
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memRepo) DeleteFeePlan(id uint) error {
	delete(r.plans, id)
	return nil
}

func (r *memRepo) HasSuccessfulTransaction(feePlanID uint) (bool, error) {
	return r.paidOnline[feePlanID], nil
}

func (r *memRepo) GetPaymentView(feePlanID uint) (*PaymentView, error) {
	p, ok := r.plans[feePlanID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &PaymentView{FeePlan: *p, Member: *r.members[p.MemberID], Provider: models.Provider{ID: p.ProviderID}}, nil
}

func (r *memRepo) MarkOverdue(before time.Time) (int64, error) {
	r.overdueCut = before
	var n int64
	for _, p := range r.plans {
		if p.Status == models.FeePlanStatusDue && !p.IsOfflinePaid && p.DueDate.Before(before) {
			p.Status = models.FeePlanStatusOverdue
			n++
		}
	}
	return n, nil
}

var (
	providerActor  = actor.Actor{Role: actor.RoleProvider, UserID: 1, ProviderID: 3}
	otherProvider  = actor.Actor{Role: actor.RoleProvider, UserID: 2, ProviderID: 4}
	moderatorActor = actor.Actor{Role: actor.RoleModerator, UserID: 5}
)

func newTestService(repo *memRepo, now time.Time) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return now }
	return s
}

func TestServiceCreate(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	in := PlanInput{ProviderID: 3, MemberID: 7, Name: " Tuition ", Amount: decimal.RequireFromString("100.456"), DueDate: DateOf(day("2024-07-01"))}

	p, err := s.Create(context.Background(), providerActor, in)
	require.NoError(t, err)
	assert.Equal(t, "Tuition", p.Name)
	assert.Equal(t, models.FeePlanStatusDue, p.Status)
	assert.Equal(t, "100.46", p.Amount.StringFixed(2))

	_, err = s.Create(context.Background(), otherProvider, in)
	assert.ErrorIs(t, err, actor.ErrForbidden)

	_, err = s.Create(context.Background(), moderatorActor, in)
	assert.ErrorIs(t, err, ErrReadOnly)

	in.MemberID = 99
	_, err = s.Create(context.Background(), providerActor, in)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = s.Create(context.Background(), providerActor, PlanInput{ProviderID: 3, MemberID: 7})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestServiceUpdateSettledPlan(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "Tuition", Amount: decimal.NewFromInt(100),
		DueDate: day("2024-06-01"), Status: models.FeePlanStatusPaid})

	in := PlanInput{ID: p.ID, ProviderID: 3, MemberID: 7, Name: "Tuition", Amount: decimal.RequireFromString("100.00"),
		DueDate: DateOf(p.DueDate), Description: "receipt mailed"}
	got, err := s.Update(context.Background(), providerActor, in)
	require.NoError(t, err)
	assert.Equal(t, "receipt mailed", got.Description)

	in.Amount = decimal.NewFromInt(120)
	_, err = s.Update(context.Background(), providerActor, in)
	assert.ErrorIs(t, err, ErrPaidPlanImmutable)
}

func TestServiceUpdateMovesOverdueBackToDue(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "Bus", Amount: decimal.NewFromInt(10),
		DueDate: day("2024-06-01"), Status: models.FeePlanStatusOverdue})

	got, err := s.Update(context.Background(), providerActor, PlanInput{ID: p.ID, ProviderID: 3, MemberID: 7,
		Name: "Bus", Amount: decimal.NewFromInt(10), DueDate: DateOf(day("2024-06-30"))})
	require.NoError(t, err)
	assert.Equal(t, models.FeePlanStatusDue, got.Status)
}

func TestServiceDelete(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	open := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A", Status: models.FeePlanStatusDue})
	paid := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "B", Status: models.FeePlanStatusDue, IsOfflinePaid: true})

	assert.ErrorIs(t, s.Delete(context.Background(), providerActor, paid.ID), ErrPaidPlanImmutable)
	assert.ErrorIs(t, s.Delete(context.Background(), otherProvider, open.ID), actor.ErrForbidden)
	require.NoError(t, s.Delete(context.Background(), providerActor, open.ID))
	assert.ErrorIs(t, s.Delete(context.Background(), providerActor, open.ID), ErrNotFound)
}

func TestServiceMarkPaidAndUnmark(t *testing.T) {
	now := day("2024-06-15").Add(10 * time.Hour)

	tests := []struct {
		name string
		due  string
		want string
	}{
		{name: "due date passed", due: "2024-06-01", want: models.FeePlanStatusOverdue},
		{name: "due today", due: "2024-06-15", want: models.FeePlanStatusDue},
		{name: "due later", due: "2024-07-01", want: models.FeePlanStatusDue},
	}
	for _, tt := range tests {
		repo := newMemRepo()
		s := newTestService(repo, now)
		p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A", Amount: decimal.NewFromInt(1),
			DueDate: day(tt.due), Status: models.FeePlanStatusDue})

		marked, err := s.MarkPaid(context.Background(), providerActor, p.ID, true)
		if err != nil {
			t.Fatalf("%s: mark: %v", tt.name, err)
		}
		if marked.Status != models.FeePlanStatusPaid || !marked.IsOfflinePaid || marked.PaidAt == nil {
			t.Fatalf("%s: unexpected marked plan %+v", tt.name, marked)
		}

		unmarked, err := s.MarkPaid(context.Background(), providerActor, p.ID, false)
		if err != nil {
			t.Fatalf("%s: unmark: %v", tt.name, err)
		}
		if unmarked.Status != tt.want || unmarked.IsOfflinePaid || unmarked.PaidAt != nil {
			t.Fatalf("%s: unmarked status = %q, want %q", tt.name, unmarked.Status, tt.want)
		}
	}
}

func TestServiceUnmarkGatewayPaid(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A", DueDate: day("2024-06-01"),
		Status: models.FeePlanStatusPaid, IsOfflinePaid: true})
	repo.paidOnline[p.ID] = true

	_, err := s.MarkPaid(context.Background(), providerActor, p.ID, false)
	assert.True(t, errors.Is(err, ErrGatewayPaid))
}

func TestServiceMarkPaidRejectsGatewayPaidPlan(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A", Status: models.FeePlanStatusPaid})

	_, err := s.MarkPaid(context.Background(), providerActor, p.ID, true)
	assert.ErrorIs(t, err, ErrPaidPlanImmutable)
}

func TestServiceGetMemberWithPlansSorted(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "paid", Status: models.FeePlanStatusPaid, DueDate: day("2024-01-01")})
	repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "late", Status: models.FeePlanStatusDue, DueDate: day("2024-06-01")})
	repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "early", Status: models.FeePlanStatusDue, DueDate: day("2024-03-01")})

	m, err := s.GetMemberWithPlans(context.Background(), moderatorActor, 3, 7)
	require.NoError(t, err)
	require.Len(t, m.FeePlans, 3)
	assert.Equal(t, "early", m.FeePlans[0].Name)
	assert.Equal(t, "late", m.FeePlans[1].Name)
	assert.Equal(t, "paid", m.FeePlans[2].Name)

	_, err = s.GetMemberWithPlans(context.Background(), otherProvider, 3, 7)
	assert.ErrorIs(t, err, actor.ErrForbidden)
}

func TestServiceGetPaymentView(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	p := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A"})

	v, err := s.GetPaymentView(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", v.Member.FirstName)

	_, err = s.GetPaymentView(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPaymentView(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceSweepOverdue(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	past := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Status: models.FeePlanStatusDue, DueDate: day("2024-06-14")})
	today := repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Status: models.FeePlanStatusDue, DueDate: day("2024-06-15")})

	n, err := s.SweepOverdue(context.Background(), day("2024-06-15").Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.FeePlanStatusOverdue, repo.plans[past.ID].Status)
	assert.Equal(t, models.FeePlanStatusDue, repo.plans[today.ID].Status)
}

func TestEditorSavesThroughService(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, day("2024-06-15"))
	repo.add(models.FeePlan{ProviderID: 3, MemberID: 7, Name: "A", Amount: decimal.NewFromInt(5), DueDate: day("2024-07-01"), Status: models.FeePlanStatusDue})
	b := ActorBackend{Service: s, Actor: providerActor}

	e := NewEditor(ConfigFor(providerActor.Role), 3, 7)
	require.NoError(t, e.Fetch(context.Background(), b))
	require.NoError(t, e.AddRow())
	require.NoError(t, e.EditField(1, FieldName, "B"))
	require.NoError(t, e.EditField(1, FieldAmount, "7.5"))
	require.NoError(t, e.EditField(1, FieldDueDate, "2024-08-01"))

	report, err := e.Save(context.Background(), b)
	require.NoError(t, err)
	assert.Len(t, report.Created, 1)
	assert.Len(t, repo.plans, 2)
	assert.Len(t, e.Rows, 2)
}
