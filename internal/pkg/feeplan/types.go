package feeplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/FeeBook/app/models"
)

var (
	ErrNotFound          = errors.New("fee plan not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrPaidPlanImmutable = errors.New("paid fee plans cannot be changed")
	ErrGatewayPaid       = errors.New("fee plan was paid online and cannot be unmarked")
	ErrSaveFailed        = errors.New("failed to save fee plans")
)

// Backend is the fee-plan API the editor talks to. Service implements it
// in-process and apiclient.Client over HTTP.
type Backend interface {
	FetchMember(ctx context.Context, providerID, memberID uint) (*models.Member, error)
	CreatePlan(ctx context.Context, in PlanInput) (*models.FeePlan, error)
	UpdatePlan(ctx context.Context, in PlanInput) (*models.FeePlan, error)
	DeletePlan(ctx context.Context, feePlanID uint) error
}

// PlanInput is the body of create and update calls.
type PlanInput struct {
	ID          uint            `json:"id,omitempty"`
	ProviderID  uint            `json:"providerId"`
	MemberID    uint            `json:"memberId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     CalendarDate    `json:"dueDate"`
}

// Validate applies the server-side rules for a plan's terms.
func (in PlanInput) Validate() error {
	verr := &ValidationError{Message: "invalid fee plan"}
	if strings.TrimSpace(in.Name) == "" {
		verr.add(0, FieldName, "name is required")
	}
	if !in.Amount.IsPositive() {
		verr.add(0, FieldAmount, "amount must be greater than zero")
	}
	if in.DueDate.IsZero() {
		verr.add(0, FieldDueDate, "due date is required")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// PaymentView is the combined payload of the payment page.
type PaymentView struct {
	FeePlan  models.FeePlan  `json:"feePlan"`
	Member   models.Member   `json:"member"`
	Provider models.Provider `json:"provider"`
}

// FieldError is one failed check on one row.
type FieldError struct {
	Row     int    `json:"row"`
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed check of a save attempt.
type ValidationError struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields"`
}

func (e *ValidationError) add(row int, f Field, msg string) {
	e.Fields = append(e.Fields, FieldError{Row: row, Field: f, Message: msg})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ForRow returns the messages recorded for one row.
func (e *ValidationError) ForRow(row int) []string {
	var out []string
	for _, f := range e.Fields {
		if f.Row == row {
			out = append(out, f.Message)
		}
	}
	return out
}

// OpResult is the outcome of one backend call issued by a save.
type OpResult struct {
	Kind      OpKind `json:"kind"`
	RowIndex  int    `json:"rowIndex"`
	FeePlanID uint   `json:"feePlanId,omitempty"`
	Name      string `json:"name"`
	Error     string `json:"error,omitempty"`
}

// SaveReport lists what a save did. Batches are not atomic, so after a
// failure Created/Updated/Deleted still name the calls that took effect.
type SaveReport struct {
	Created []OpResult `json:"created"`
	Updated []OpResult `json:"updated"`
	Deleted []OpResult `json:"deleted"`
	Failed  []OpResult `json:"failed"`
}

func (r *SaveReport) record(op Op, saved *models.FeePlan, err error) {
	res := OpResult{Kind: op.Kind, RowIndex: op.RowIndex, FeePlanID: op.Input.ID, Name: op.Input.Name}
	if err == nil && saved != nil {
		res.FeePlanID = saved.ID
	}
	if err != nil {
		res.Error = err.Error()
		r.Failed = append(r.Failed, res)
		return
	}
	switch op.Kind {
	case OpCreate:
		r.Created = append(r.Created, res)
	case OpUpdate:
		r.Updated = append(r.Updated, res)
	case OpDelete:
		r.Deleted = append(r.Deleted, res)
	}
}

func (r *SaveReport) sort() {
	for _, list := range [][]OpResult{r.Created, r.Updated, r.Deleted, r.Failed} {
		sort.Slice(list, func(i, j int) bool { return list[i].RowIndex < list[j].RowIndex })
	}
}

// Writes is the number of calls issued.
func (r *SaveReport) Writes() int {
	return len(r.Created) + len(r.Updated) + len(r.Deleted) + len(r.Failed)
}

func (r *SaveReport) PartiallyApplied() bool {
	return len(r.Failed) > 0 && len(r.Created)+len(r.Updated)+len(r.Deleted) > 0
}

// SaveError reports a failed batch. Its message stays generic.
type SaveError struct {
	Report *SaveReport
	Err    error
}

func (e *SaveError) Error() string {
	return ErrSaveFailed.Error()
}

func (e *SaveError) Unwrap() []error {
	return []error{ErrSaveFailed, e.Err}
}

// Detail describes the failed calls for logs and admin views.
func (e *SaveError) Detail() string {
	if e.Report == nil || len(e.Report.Failed) == 0 {
		return e.Err.Error()
	}
	parts := make([]string, 0, len(e.Report.Failed))
	for _, f := range e.Report.Failed {
		parts = append(parts, fmt.Sprintf("%s row %d: %s", f.Kind, f.RowIndex+1, f.Error))
	}
	return strings.Join(parts, "; ")
}
