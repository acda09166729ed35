package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
)

const (
	searchCacheTTL     = 60 * time.Second
	wizardTTL          = time.Hour
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

// Service resolves providers and members and records claims.
type Service struct {
	repo  Repository
	cache cache.Store
	now   func() time.Time
}

// NewService creates a membership service. store may be nil to disable
// search caching and wizard persistence.
func NewService(repo Repository, store cache.Store) *Service {
	return &Service{repo: repo, cache: store, now: time.Now}
}

// NewServiceFromDB creates a membership service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, store cache.Store) *Service {
	return NewService(NewRepository(db), store)
}

func searchKey(category, region, query string, limit int) string {
	return fmt.Sprintf("membership:search:%s:%s:%d:%s", category, region, limit, strings.ToLower(query))
}

// SearchProviders finds approved providers of a category and region whose
// name, code or city contains query.
func (s *Service) SearchProviders(ctx context.Context, category, region, query string, limit int) ([]ProviderResult, error) {
	category = strings.ToUpper(strings.TrimSpace(category))
	region = strings.ToUpper(strings.TrimSpace(region))
	query = strings.TrimSpace(query)
	if !models.IsValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	if !IsValidRegion(region) {
		return nil, ErrInvalidRegion
	}
	if len([]rune(query)) < MinSearchLength {
		return nil, ErrSearchQueryTooSmall
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	key := searchKey(category, region, query, limit)
	if s.cache != nil {
		var cached []ProviderResult
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	providers, err := s.repo.SearchProviders(category, region, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]ProviderResult, 0, len(providers))
	for _, p := range providers {
		results = append(results, ProviderResult{ID: p.ID, Name: p.Name, Code: p.Code, Category: p.Category, Region: p.Region, City: p.City})
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, results, searchCacheTTL); err != nil {
			log.Warnf("[Membership] Failed to cache search %s: %v", key, err)
		}
	}
	return results, nil
}

// FindMemberByUniqueID looks up a member of an approved provider. The id is
// matched upper-cased.
func (s *Service) FindMemberByUniqueID(ctx context.Context, providerID uint, uniqueID string) (*models.Member, error) {
	_ = ctx
	uniqueID = models.NormalizeUniqueID(uniqueID)
	if providerID == 0 || uniqueID == "" {
		return nil, ErrMemberNotFound
	}
	p, err := s.repo.GetProvider(providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if !p.IsApproved() {
		return nil, ErrProviderNotFound
	}
	m, err := s.repo.FindMember(providerID, uniqueID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

// Claim links the consumer to a member. Claiming the same member again
// returns *ConflictError naming the existing membership.
func (s *Service) Claim(ctx context.Context, a actor.Actor, req ClaimRequest) (*models.ConsumerMembership, error) {
	if err := a.RequireConsumer(); err != nil {
		return nil, err
	}
	if req.ConsumerID != 0 && req.ConsumerID != a.ConsumerID {
		return nil, actor.ErrForbidden
	}
	member, err := s.FindMemberByUniqueID(ctx, req.ProviderID, req.MemberUniqueID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindMembership(a.ConsumerID, member.ID); err == nil {
		return nil, &ConflictError{MembershipID: existing.ID}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m := &models.ConsumerMembership{
		ConsumerID: a.ConsumerID,
		MemberID:   member.ID,
		ProviderID: member.ProviderID,
		ClaimedAt:  s.now(),
	}
	created, err := s.repo.CreateMembershipIfNotExists(m)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.repo.FindMembership(a.ConsumerID, member.ID)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{MembershipID: existing.ID}
	}
	log.Infof("[Membership] Consumer %d claimed member %d of provider %d", a.ConsumerID, member.ID, member.ProviderID)
	return m, nil
}

// MembershipCard is one entry of the consumer dashboard.
type MembershipCard struct {
	models.ConsumerMembership
	DueCount     int             `json:"dueCount"`
	OverdueCount int             `json:"overdueCount"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// ListForConsumer returns the consumer's memberships with open balances.
func (s *Service) ListForConsumer(ctx context.Context, a actor.Actor) ([]MembershipCard, error) {
	_ = ctx
	if err := a.RequireConsumer(); err != nil {
		return nil, err
	}
	list, err := s.repo.ListMemberships(a.ConsumerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cards := make([]MembershipCard, 0, len(list))
	for _, m := range list {
		card := MembershipCard{ConsumerMembership: m, Outstanding: decimal.Zero}
		if m.Member != nil {
			for _, p := range m.Member.FeePlans {
				switch feeplan.ClassifyPlan(p, now) {
				case feeplan.StatusDue:
					card.DueCount++
					card.Outstanding = card.Outstanding.Add(p.Amount)
				case feeplan.StatusOverdue:
					card.OverdueCount++
					card.Outstanding = card.Outstanding.Add(p.Amount)
				}
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// ScheduleView is a membership's payment schedule.
type ScheduleView struct {
	Membership  models.ConsumerMembership `json:"membership"`
	Member      models.Member             `json:"member"`
	Provider    models.Provider           `json:"provider"`
	Plans       []feeplan.ScheduleEntry   `json:"plans"`
	Outstanding decimal.Decimal           `json:"outstanding"`
	Paid        decimal.Decimal           `json:"paid"`
}

// Schedule returns the membership's fee plans, unpaid first.
func (s *Service) Schedule(ctx context.Context, a actor.Actor, membershipID uint) (*ScheduleView, error) {
	_ = ctx
	if !a.IsAuthenticated() {
		return nil, actor.ErrAnonymous
	}
	m, err := s.repo.GetMembership(membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	switch {
	case a.Role == actor.RoleConsumer:
		if m.ConsumerID != a.ConsumerID {
			return nil, ErrMembershipNotFound
		}
	case !a.CanManageProvider(m.ProviderID):
		return nil, actor.ErrForbidden
	}
	if m.Member == nil || m.Provider == nil {
		return nil, ErrMembershipNotFound
	}

	view := &ScheduleView{
		Membership:  *m,
		Member:      *m.Member,
		Provider:    *m.Provider,
		Plans:       feeplan.BuildSchedule(m.Member.FeePlans, s.now()),
		Outstanding: decimal.Zero,
		Paid:        decimal.Zero,
	}
	view.Membership.Member = nil
	view.Membership.Provider = nil
	view.Member.FeePlans = nil
	for _, e := range view.Plans {
		if e.DisplayStatus.IsSettled() {
			view.Paid = view.Paid.Add(e.Amount)
		} else {
			view.Outstanding = view.Outstanding.Add(e.Amount)
		}
	}
	return view, nil
}

func wizardKey(consumerID uint) string {
	return fmt.Sprintf("membership:wizard:%d", consumerID)
}

// LoadWizard returns the consumer's wizard or a fresh one.
func (s *Service) LoadWizard(ctx context.Context, consumerID uint) *Wizard {
	w := NewWizard()
	if s.cache == nil {
		return w
	}
	if ok, err := s.cache.GetJSON(ctx, wizardKey(consumerID), w); err != nil || !ok {
		if err != nil {
			log.Warnf("[Membership] Failed to load wizard of consumer %d: %v", consumerID, err)
		}
		return NewWizard()
	}
	if _, err := w.Step.Index(); err != nil {
		return NewWizard()
	}
	return w
}

func (s *Service) SaveWizard(ctx context.Context, consumerID uint, w *Wizard) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.SetJSON(ctx, wizardKey(consumerID), w, wizardTTL)
}

// updateWizard applies fn to the stored wizard atomically. fn reports whether
// the wizard should be written back. A copy of the resulting state is
// returned.
func (s *Service) updateWizard(ctx context.Context, consumerID uint, fn func(w *Wizard) bool) (*Wizard, error) {
	if s.cache == nil {
		w := NewWizard()
		fn(w)
		return w, nil
	}
	var out Wizard
	err := cache.UpdateJSON(ctx, s.cache, wizardKey(consumerID), wizardTTL, func(w *Wizard, found bool) (bool, error) {
		if _, err := w.Step.Index(); !found || err != nil {
			*w = *NewWizard()
		}
		write := fn(w)
		out = *w
		return write, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BeginSearch makes query the consumer's latest wizard search and returns
// its generation. Concurrent calls always get distinct generations.
func (s *Service) BeginSearch(ctx context.Context, consumerID uint, query string) (gen uint64, w *Wizard, ok bool, err error) {
	w, err = s.updateWizard(ctx, consumerID, func(w *Wizard) bool {
		gen, ok = w.BeginSearch(query)
		return true
	})
	return gen, w, ok, err
}

// ApplySearch stores results if gen is still the latest search generation.
// Without a cache there is nothing to race with and results always apply.
func (s *Service) ApplySearch(ctx context.Context, consumerID uint, gen uint64, results []ProviderResult) (bool, error) {
	if s.cache == nil {
		return true, nil
	}
	var applied bool
	_, err := s.updateWizard(ctx, consumerID, func(w *Wizard) bool {
		applied = w.ApplySearch(gen, results)
		return applied
	})
	return applied, err
}

// SearchOutcome is the answer to one wizard search.
type SearchOutcome struct {
	Gen     uint64
	Query   string
	Results []ProviderResult
	// Applied is false when a newer search started while this one ran.
	Applied bool
}

// Search runs a provider search for the consumer's wizard. Results of a
// query that was superseded are returned but not stored.
func (s *Service) Search(ctx context.Context, consumerID uint, query string) (*SearchOutcome, error) {
	gen, w, ok, err := s.BeginSearch(ctx, consumerID, query)
	if err != nil {
		return nil, err
	}
	out := &SearchOutcome{Gen: gen, Query: w.Query, Applied: true}
	if !ok {
		return out, nil
	}
	results, err := s.SearchProviders(ctx, w.Category, w.Region, w.Query, 0)
	if err != nil {
		return out, err
	}
	out.Results = results
	if out.Applied, err = s.ApplySearch(ctx, consumerID, gen, results); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) ResetWizard(ctx context.Context, consumerID uint) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, wizardKey(consumerID))
}
