package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
)

type memRepo struct {
	providers   map[uint]*models.Provider
	members     map[uint]*models.Member
	memberships map[uint]*models.ConsumerMembership
	searches    int
	// hideExisting simulates a concurrent claim landing between the
	// lookup and the insert.
	hideExisting bool
	nextID       uint
}

func newMemRepo() *memRepo {
	return &memRepo{
		providers: map[uint]*models.Provider{
			1: {ID: 1, Name: "Alpha Academy", Code: "ALPHA", Category: models.CategoryCoaching, Region: "KA", City: "Bengaluru", Status: models.ProviderStatusApproved},
			2: {ID: 2, Name: "Alpine Gym", Code: "ALPN", Category: models.CategoryCoaching, Region: "KA", Status: models.ProviderStatusPending},
		},
		members: map[uint]*models.Member{
			5: {ID: 5, ProviderID: 1, UniqueID: "STU-001", FirstName: "Asha", LastName: "Rao"},
			6: {ID: 6, ProviderID: 2, UniqueID: "GYM-9", FirstName: "Ravi"},
		},
		memberships: map[uint]*models.ConsumerMembership{},
	}
}

func (r *memRepo) SearchProviders(category, region, query string, limit int) ([]models.Provider, error) {
	r.searches++
	var out []models.Provider
	for _, p := range r.providers {
		if p.Status != models.ProviderStatusApproved || p.Category != category || p.Region != region {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, *p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetProvider(id uint) (*models.Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindMember(providerID uint, uniqueID string) (*models.Member, error) {
	for _, m := range r.members {
		if m.ProviderID == providerID && m.UniqueID == uniqueID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) FindMembership(consumerID, memberID uint) (*models.ConsumerMembership, error) {
	if r.hideExisting {
		r.hideExisting = false
		return nil, gorm.ErrRecordNotFound
	}
	for _, m := range r.memberships {
		if m.ConsumerID == consumerID && m.MemberID == memberID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) CreateMembershipIfNotExists(m *models.ConsumerMembership) (bool, error) {
	for _, e := range r.memberships {
		if e.ConsumerID == m.ConsumerID && e.MemberID == m.MemberID {
			return false, nil
		}
	}
	r.nextID++
	m.ID = r.nextID
	cp := *m
	r.memberships[m.ID] = &cp
	return true, nil
}

func (r *memRepo) hydrate(m models.ConsumerMembership) models.ConsumerMembership {
	mem := *r.members[m.MemberID]
	prov := *r.providers[m.ProviderID]
	m.Member = &mem
	m.Provider = &prov
	return m
}

func (r *memRepo) ListMemberships(consumerID uint) ([]models.ConsumerMembership, error) {
	var out []models.ConsumerMembership
	for _, m := range r.memberships {
		if m.ConsumerID == consumerID {
			out = append(out, r.hydrate(*m))
		}
	}
	return out, nil
}

func (r *memRepo) GetMembership(id uint) (*models.ConsumerMembership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	h := r.hydrate(*m)
	return &h, nil
}

var consumer = actor.Actor{Role: actor.RoleConsumer, ConsumerID: 42}

func newTestService(repo *memRepo, store cache.Store) *Service {
	s := NewService(repo, store)
	s.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.Local) }
	return s
}

func TestSearchProviders(t *testing.T) {
	repo := newMemRepo()
	store := cache.NewMemoryStore()
	s := newTestService(repo, store)
	ctx := context.Background()

	res, err := s.SearchProviders(ctx, "coaching", "ka", "alp", 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Alpha Academy", res[0].Name)

	_, err = s.SearchProviders(ctx, "COACHING", "KA", "ALP", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.searches)
	assert.Len(t, store.Keys(), 1)

	_, err = s.SearchProviders(ctx, "COACHING", "KA", "a", 0)
	assert.ErrorIs(t, err, ErrSearchQueryTooSmall)
	_, err = s.SearchProviders(ctx, "CHESS", "KA", "alpha", 0)
	assert.ErrorIs(t, err, ErrInvalidCategory)
	_, err = s.SearchProviders(ctx, "COACHING", "QQ", "alpha", 0)
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestFindMemberByUniqueID(t *testing.T) {
	s := newTestService(newMemRepo(), nil)
	ctx := context.Background()

	m, err := s.FindMemberByUniqueID(ctx, 1, " stu-001")
	require.NoError(t, err)
	assert.Equal(t, uint(5), m.ID)

	_, err = s.FindMemberByUniqueID(ctx, 1, "STU-404")
	assert.ErrorIs(t, err, ErrMemberNotFound)
	_, err = s.FindMemberByUniqueID(ctx, 2, "GYM-9")
	assert.ErrorIs(t, err, ErrProviderNotFound)
	_, err = s.FindMemberByUniqueID(ctx, 9, "X")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestClaimIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, nil)
	ctx := context.Background()
	req := ClaimRequest{ConsumerID: 42, ProviderID: 1, MemberUniqueID: "stu-001"}

	m, err := s.Claim(ctx, consumer, req)
	require.NoError(t, err)
	assert.Equal(t, uint(5), m.MemberID)
	assert.Equal(t, uint(1), m.ProviderID)

	_, err = s.Claim(ctx, consumer, req)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, m.ID, conflict.MembershipID)
	assert.Len(t, repo.memberships, 1)

	// Losing the insert race still reports the winner's id.
	repo.hideExisting = true
	_, err = s.Claim(ctx, consumer, req)
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, m.ID, conflict.MembershipID)
}

func TestClaimRequiresMatchingConsumer(t *testing.T) {
	s := newTestService(newMemRepo(), nil)
	ctx := context.Background()

	_, err := s.Claim(ctx, consumer, ClaimRequest{ConsumerID: 7, ProviderID: 1, MemberUniqueID: "STU-001"})
	assert.ErrorIs(t, err, actor.ErrForbidden)

	provider := actor.Actor{Role: actor.RoleProvider, UserID: 3, ProviderID: 1}
	_, err = s.Claim(ctx, provider, ClaimRequest{ProviderID: 1, MemberUniqueID: "STU-001"})
	assert.ErrorIs(t, err, actor.ErrForbidden)

	_, err = s.Claim(ctx, actor.Actor{}, ClaimRequest{ProviderID: 1, MemberUniqueID: "STU-001"})
	assert.ErrorIs(t, err, actor.ErrAnonymous)
}

func TestScheduleAndDashboard(t *testing.T) {
	repo := newMemRepo()
	repo.members[5].FeePlans = []models.FeePlan{
		{ID: 1, Name: "June", Amount: decimal.NewFromInt(500), Status: models.FeePlanStatusDue, DueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)},
		{ID: 2, Name: "July", Amount: decimal.NewFromInt(500), Status: models.FeePlanStatusDue, DueDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local)},
		{ID: 3, Name: "May", Amount: decimal.NewFromInt(400), Status: models.FeePlanStatusPaid, DueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)},
	}
	s := newTestService(repo, nil)
	ctx := context.Background()

	m, err := s.Claim(ctx, consumer, ClaimRequest{ProviderID: 1, MemberUniqueID: "STU-001"})
	require.NoError(t, err)

	view, err := s.Schedule(ctx, consumer, m.ID)
	require.NoError(t, err)
	require.Len(t, view.Plans, 3)
	assert.Equal(t, uint(1), view.Plans[0].ID)
	assert.Equal(t, feeplan.StatusOverdue, view.Plans[0].DisplayStatus)
	assert.Equal(t, feeplan.StatusPaid, view.Plans[2].DisplayStatus)
	assert.True(t, view.Outstanding.Equal(decimal.NewFromInt(1000)))
	assert.True(t, view.Paid.Equal(decimal.NewFromInt(400)))

	other := actor.Actor{Role: actor.RoleConsumer, ConsumerID: 43}
	_, err = s.Schedule(ctx, other, m.ID)
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	cards, err := s.ListForConsumer(ctx, consumer)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 1, cards[0].DueCount)
	assert.Equal(t, 1, cards[0].OverdueCount)
}

func TestWizardPersistence(t *testing.T) {
	s := newTestService(newMemRepo(), cache.NewMemoryStore())
	ctx := context.Background()

	w := s.LoadWizard(ctx, 42)
	assert.Equal(t, StepCategory, w.Step)
	require.NoError(t, w.SelectCategory("OTHER"))
	require.NoError(t, w.Next())
	require.NoError(t, s.SaveWizard(ctx, 42, w))

	loaded := s.LoadWizard(ctx, 42)
	assert.Equal(t, StepRegion, loaded.Step)
	assert.Equal(t, "OTHER", loaded.Category)

	require.NoError(t, s.ResetWizard(ctx, 42))
	assert.Equal(t, StepCategory, s.LoadWizard(ctx, 42).Step)
}

func saveProviderStep(t *testing.T, s *Service, consumerID uint) {
	t.Helper()
	w := NewWizard()
	w.Category = models.CategoryCoaching
	w.Region = "KA"
	w.Step = StepProvider
	require.NoError(t, s.SaveWizard(context.Background(), consumerID, w))
}

func TestWizardSearchOutOfOrderKeepsLatestQuery(t *testing.T) {
	s := newTestService(newMemRepo(), cache.NewMemoryStore())
	ctx := context.Background()
	saveProviderStep(t, s, 42)

	// Two keystroke requests start from the same stored wizard; the shorter
	// query finishes last.
	slowGen, _, ok, err := s.BeginSearch(ctx, 42, "al")
	require.NoError(t, err)
	require.True(t, ok)
	fastGen, _, ok, err := s.BeginSearch(ctx, 42, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, fastGen, slowGen)

	fast := []ProviderResult{{ID: 1, Name: "Alpha Academy"}}
	applied, err := s.ApplySearch(ctx, 42, fastGen, fast)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ApplySearch(ctx, 42, slowGen, []ProviderResult{{ID: 9, Name: "Alps Club"}, {ID: 1, Name: "Alpha Academy"}})
	require.NoError(t, err)
	assert.False(t, applied)

	got := s.LoadWizard(ctx, 42)
	assert.Equal(t, "alpha", got.Query)
	assert.Equal(t, fastGen, got.SearchGen)
	assert.Equal(t, fast, got.Results)
	assert.ErrorIs(t, got.SelectProvider(9), ErrProviderNotInList)
	assert.NoError(t, got.SelectProvider(1))
}

func TestWizardSearchGenerationsAreDistinct(t *testing.T) {
	s := newTestService(newMemRepo(), cache.NewMemoryStore())
	ctx := context.Background()
	saveProviderStep(t, s, 42)

	const n = 20
	gens := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen, _, _, err := s.BeginSearch(ctx, 42, "alpha")
			assert.NoError(t, err)
			gens <- gen
		}()
	}
	wg.Wait()
	close(gens)

	seen := map[uint64]bool{}
	for g := range gens {
		if seen[g] {
			t.Fatalf("generation %d handed out twice", g)
		}
		seen[g] = true
	}
	assert.Equal(t, uint64(n), s.LoadWizard(ctx, 42).SearchGen)
}

func TestWizardSearch(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, cache.NewMemoryStore())
	ctx := context.Background()
	saveProviderStep(t, s, 42)

	out, err := s.Search(ctx, 42, " alp ")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, "alp", out.Query)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Alpha Academy", out.Results[0].Name)

	w := s.LoadWizard(ctx, 42)
	assert.Equal(t, out.Gen, w.SearchGen)
	assert.Equal(t, out.Results, w.Results)
	assert.Equal(t, StepProvider, w.Step)

	out, err = s.Search(ctx, 42, "a")
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, s.LoadWizard(ctx, 42).Results)
	assert.Equal(t, 1, repo.searches)
}
