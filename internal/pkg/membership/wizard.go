package membership

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// Step is a wizard page. Steps are strictly linear.
type Step string

const (
	StepCategory Step = "category"
	StepRegion   Step = "region"
	StepProvider Step = "provider"
	StepMember   Step = "member"
	StepReview   Step = "review"
)

// Steps lists every step in order.
var Steps = []Step{StepCategory, StepRegion, StepProvider, StepMember, StepReview}

const (
	// MinSearchLength is the shortest query that triggers a provider search.
	MinSearchLength = 2
	// SearchDebounce is how long the page waits after the last keystroke.
	SearchDebounce = 300 * time.Millisecond
	// ConflictRedirectDelay is the pause between the conflict toast and the
	// redirect to the existing membership.
	ConflictRedirectDelay = 1500 * time.Millisecond
)

var (
	ErrUnknownStep         = errors.New("unknown wizard step")
	ErrFirstStep           = errors.New("already at the first step")
	ErrLastStep            = errors.New("already at the last step")
	ErrStepIncomplete      = errors.New("complete this step before continuing")
	ErrWrongStep           = errors.New("action not available on this step")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidRegion       = errors.New("invalid region")
	ErrProviderNotInList   = errors.New("provider is not in the search results")
	ErrMemberIDRequired    = errors.New("member ID is required")
	ErrNoResolvedMember    = errors.New("member has not been verified")
	ErrSearchQueryTooSmall = fmt.Errorf("enter at least %d characters", MinSearchLength)
)

// Index returns the position of s in Steps.
func (s Step) Index() (int, error) {
	switch s {
	case StepCategory:
		return 0, nil
	case StepRegion:
		return 1, nil
	case StepProvider:
		return 2, nil
	case StepMember:
		return 3, nil
	case StepReview:
		return 4, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

func (s Step) Title() string {
	switch s {
	case StepCategory:
		return "Choose a category"
	case StepRegion:
		return "Choose your state"
	case StepProvider:
		return "Find your provider"
	case StepMember:
		return "Verify member ID"
	case StepReview:
		return "Review and confirm"
	}
	return string(s)
}

// ProviderResult is one provider search hit.
type ProviderResult struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Region   string `json:"region"`
	City     string `json:"city"`
}

// MemberSummary is the resolved member shown on the review step.
type MemberSummary struct {
	ID         uint   `json:"id"`
	UniqueID   string `json:"uniqueId"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	ProviderID uint   `json:"providerId"`
}

// SummarizeMember builds the review card of a member.
func SummarizeMember(m *models.Member) MemberSummary {
	return MemberSummary{ID: m.ID, UniqueID: m.UniqueID, Name: m.FullName(), Category: m.Category, ProviderID: m.ProviderID}
}

// Wizard is the state of one consumer's membership linking flow.
type Wizard struct {
	Step      Step             `json:"step"`
	Category  string           `json:"category"`
	Region    string           `json:"region"`
	Query     string           `json:"query"`
	SearchGen uint64           `json:"searchGen"`
	Results   []ProviderResult `json:"results"`
	Provider  *ProviderResult  `json:"provider,omitempty"`
	UniqueID  string           `json:"uniqueId"`
	Member    *MemberSummary   `json:"member,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NewWizard starts at the category step.
func NewWizard() *Wizard {
	return &Wizard{Step: StepCategory}
}

func (w *Wizard) SelectCategory(category string) error {
	if w.Step != StepCategory {
		return ErrWrongStep
	}
	category = strings.ToUpper(strings.TrimSpace(category))
	if !models.IsValidCategory(category) {
		return ErrInvalidCategory
	}
	if category != w.Category {
		w.resetFrom(StepProvider)
	}
	w.Category = category
	return nil
}

func (w *Wizard) SelectRegion(code string) error {
	if w.Step != StepRegion {
		return ErrWrongStep
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsValidRegion(code) {
		return ErrInvalidRegion
	}
	if code != w.Region {
		w.resetFrom(StepProvider)
	}
	w.Region = code
	return nil
}

// resetFrom clears selections made on step s and later.
func (w *Wizard) resetFrom(s Step) {
	idx, _ := s.Index()
	if idx <= 2 {
		w.Query = ""
		w.Results = nil
		w.Provider = nil
		w.SearchGen++
	}
	if idx <= 3 {
		w.UniqueID = ""
		w.Member = nil
	}
}

// complete reports whether the current step has what it needs to advance.
func (w *Wizard) complete() (bool, error) {
	switch w.Step {
	case StepCategory:
		return w.Category != "", nil
	case StepRegion:
		return w.Region != "", nil
	case StepProvider:
		return w.Provider != nil, nil
	case StepMember:
		return w.Member != nil, nil
	case StepReview:
		return false, ErrLastStep
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownStep, w.Step)
}

// Next advances one step once the current one is complete.
func (w *Wizard) Next() error {
	ok, err := w.complete()
	if err != nil {
		return err
	}
	if !ok {
		return ErrStepIncomplete
	}
	idx, _ := w.Step.Index()
	w.Step = Steps[idx+1]
	w.Error = ""
	return nil
}

// Back returns to the previous step. Selections are kept, the step error is
// cleared.
func (w *Wizard) Back() error {
	idx, err := w.Step.Index()
	if err != nil {
		return err
	}
	if idx == 0 {
		return ErrFirstStep
	}
	w.Step = Steps[idx-1]
	w.Error = ""
	return nil
}

// BeginSearch registers a new query and returns its generation. Queries
// shorter than MinSearchLength clear the results and return ok=false.
// Either way every earlier generation becomes stale.
func (w *Wizard) BeginSearch(query string) (gen uint64, ok bool) {
	w.SearchGen++
	w.Query = strings.TrimSpace(query)
	if len([]rune(w.Query)) < MinSearchLength {
		w.Results = nil
		return w.SearchGen, false
	}
	return w.SearchGen, true
}

// ApplySearch stores results only if gen is the latest generation.
func (w *Wizard) ApplySearch(gen uint64, results []ProviderResult) bool {
	if gen != w.SearchGen {
		return false
	}
	w.Results = results
	return true
}

// SelectProvider picks a provider from the current results.
func (w *Wizard) SelectProvider(providerID uint) error {
	if w.Step != StepProvider {
		return ErrWrongStep
	}
	for _, r := range w.Results {
		if r.ID == providerID {
			if w.Provider == nil || w.Provider.ID != providerID {
				w.resetFrom(StepMember)
			}
			sel := r
			w.Provider = &sel
			w.Error = ""
			return nil
		}
	}
	return ErrProviderNotInList
}

// SetUniqueID stores the normalized member ID typed on the member step.
func (w *Wizard) SetUniqueID(uniqueID string) (string, error) {
	if w.Step != StepMember {
		return "", ErrWrongStep
	}
	id := models.NormalizeUniqueID(uniqueID)
	if id == "" {
		return "", ErrMemberIDRequired
	}
	if id != w.UniqueID {
		w.Member = nil
	}
	w.UniqueID = id
	return id, nil
}

// MemberFound records a successful lookup and jumps to review.
func (w *Wizard) MemberFound(m MemberSummary) error {
	if w.Step != StepMember {
		return ErrWrongStep
	}
	w.Member = &m
	w.Error = ""
	w.Step = StepReview
	return nil
}

// MemberLookupFailed keeps the wizard on the member step with msg shown.
func (w *Wizard) MemberLookupFailed(msg string) {
	w.Member = nil
	w.Error = msg
}

// ClaimRequest is the body of the claim call.
type ClaimRequest struct {
	ConsumerID     uint   `json:"consumerId"`
	ProviderID     uint   `json:"providerId"`
	MemberUniqueID string `json:"memberUniqueId"`
}

// Claim returns the claim request of the review step.
func (w *Wizard) Claim(consumerID uint) (ClaimRequest, error) {
	if w.Step != StepReview {
		return ClaimRequest{}, ErrWrongStep
	}
	if w.Provider == nil || w.Member == nil {
		return ClaimRequest{}, ErrNoResolvedMember
	}
	return ClaimRequest{ConsumerID: consumerID, ProviderID: w.Provider.ID, MemberUniqueID: w.Member.UniqueID}, nil
}
