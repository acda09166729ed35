package feeplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
)

// maxConcurrentWrites bounds the fan-out of a single save.
const maxConcurrentWrites = 8

var (
	ErrReadOnly     = errors.New("fee plans are read-only for this account")
	ErrRowNotFound  = errors.New("fee plan row does not exist")
	ErrUnknownField = errors.New("unknown fee plan field")
)

// Field names a user-editable column of an editor row.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldDueDate     Field = "dueDate"
)

// Row is the form-bound view of a fee plan. ID is zero until persisted.
type Row struct {
	ID            uint          `json:"id,omitempty"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Amount        string        `json:"amount"`
	DueDate       *CalendarDate `json:"dueDate,omitempty"`
	IsPaid        bool          `json:"isPaid"`
	IsOfflinePaid bool          `json:"isOfflinePaid"`
	Status        string        `json:"status,omitempty"`
	IsDeleted     bool          `json:"isDeleted,omitempty"`
}

func rowFromPlan(p models.FeePlan) Row {
	d := DateOf(p.DueDate)
	return Row{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Amount:        p.Amount.String(),
		DueDate:       &d,
		IsPaid:        p.IsSettled(),
		IsOfflinePaid: p.IsOfflinePaid,
		Status:        p.Status,
	}
}

// Config parametrizes the editor for the role using it.
type Config struct {
	Role        actor.Role `json:"role"`
	CanEdit     bool       `json:"canEdit"`
	CanMarkPaid bool       `json:"canMarkPaid"`
}

// ConfigFor returns the editor configuration of a role.
func ConfigFor(role actor.Role) Config {
	switch role {
	case actor.RoleAdmin, actor.RoleProvider:
		return Config{Role: role, CanEdit: true, CanMarkPaid: true}
	case actor.RoleModerator:
		return Config{Role: role}
	case actor.RoleConsumer:
		return Config{Role: role}
	}
	return Config{Role: role}
}

// Editor holds the edit buffer of one member's fee plans together with the
// snapshot of the last fetch.
type Editor struct {
	Config     Config `json:"config"`
	ProviderID uint   `json:"providerId"`
	MemberID   uint   `json:"memberId"`
	MemberName string `json:"memberName"`
	Rows       []Row  `json:"rows"`
	Snapshot   []Row  `json:"snapshot"`
}

// NewEditor returns an editor with a single empty row.
func NewEditor(cfg Config, providerID, memberID uint) *Editor {
	e := &Editor{Config: cfg, ProviderID: providerID, MemberID: memberID}
	e.Rows = []Row{{}}
	return e
}

// Load replaces rows and snapshot with the member's current fee plans.
func (e *Editor) Load(member *models.Member) {
	e.MemberName = member.FullName()
	e.Rows = make([]Row, 0, len(member.FeePlans))
	for _, p := range member.FeePlans {
		e.Rows = append(e.Rows, rowFromPlan(p))
	}
	e.Snapshot = make([]Row, len(e.Rows))
	copy(e.Snapshot, e.Rows)
	for i := range e.Snapshot {
		if e.Snapshot[i].DueDate != nil {
			d := *e.Snapshot[i].DueDate
			e.Snapshot[i].DueDate = &d
		}
	}
	if len(e.Rows) == 0 {
		e.Rows = []Row{{}}
	}
}

// Fetch loads the member through the backend and hydrates the editor.
func (e *Editor) Fetch(ctx context.Context, b Backend) error {
	member, err := b.FetchMember(ctx, e.ProviderID, e.MemberID)
	if err != nil {
		return err
	}
	e.Load(member)
	return nil
}

// VisibleIndexes returns the indexes of rows that are not soft-deleted.
func (e *Editor) VisibleIndexes() []int {
	idx := make([]int, 0, len(e.Rows))
	for i, r := range e.Rows {
		if !r.IsDeleted {
			idx = append(idx, i)
		}
	}
	return idx
}

// AddRow appends an empty, unsaved row.
func (e *Editor) AddRow() error {
	if !e.Config.CanEdit {
		return ErrReadOnly
	}
	e.Rows = append(e.Rows, Row{})
	return nil
}

// RemoveRow soft-deletes a persisted row or splices out an unsaved one.
// It does nothing while only one visible row remains.
func (e *Editor) RemoveRow(index int) error {
	if !e.Config.CanEdit {
		return ErrReadOnly
	}
	if len(e.VisibleIndexes()) <= 1 {
		return nil
	}
	if index < 0 || index >= len(e.Rows) || e.Rows[index].IsDeleted {
		return ErrRowNotFound
	}
	if e.Rows[index].IsPaid {
		return ErrPaidPlanImmutable
	}
	if e.Rows[index].ID != 0 {
		e.Rows[index].IsDeleted = true
		return nil
	}
	e.Rows = append(e.Rows[:index], e.Rows[index+1:]...)
	return nil
}

// EditField sets one column of a row. Settled rows cannot be edited.
func (e *Editor) EditField(index int, field Field, value string) error {
	if !e.Config.CanEdit {
		return ErrReadOnly
	}
	if index < 0 || index >= len(e.Rows) || e.Rows[index].IsDeleted {
		return ErrRowNotFound
	}
	row := &e.Rows[index]
	if row.IsPaid {
		return ErrPaidPlanImmutable
	}
	switch field {
	case FieldName:
		row.Name = value
	case FieldDescription:
		row.Description = value
	case FieldAmount:
		row.Amount = strings.TrimSpace(value)
	case FieldDueDate:
		if strings.TrimSpace(value) == "" {
			row.DueDate = nil
			return nil
		}
		d, err := ParseDate(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		row.DueDate = &d
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// OpKind is the write a save issues for one row.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one planned backend call.
type Op struct {
	Kind     OpKind    `json:"kind"`
	RowIndex int       `json:"rowIndex"`
	Input    PlanInput `json:"input"`
}

// Validate checks every visible row and collects all problems.
func (e *Editor) Validate() error {
	verr := &ValidationError{Message: "Please fill name, amount and due date for every fee plan"}
	for _, i := range e.VisibleIndexes() {
		r := e.Rows[i]
		if strings.TrimSpace(r.Name) == "" {
			verr.add(i, FieldName, "name is required")
		}
		if strings.TrimSpace(r.Amount) == "" {
			verr.add(i, FieldAmount, "amount is required")
		} else if amt, err := decimal.NewFromString(r.Amount); err != nil {
			verr.add(i, FieldAmount, "amount must be a number")
		} else if !amt.IsPositive() {
			verr.add(i, FieldAmount, "amount must be greater than zero")
		}
		if r.DueDate == nil || r.DueDate.IsZero() {
			verr.add(i, FieldDueDate, "due date is required")
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Diff computes the minimal write set against the snapshot. Rows must have
// passed Validate.
func (e *Editor) Diff() []Op {
	snapshot := make(map[uint]Row, len(e.Snapshot))
	for _, s := range e.Snapshot {
		if s.ID != 0 {
			snapshot[s.ID] = s
		}
	}

	var ops []Op
	for i, r := range e.Rows {
		if r.IsDeleted && r.ID != 0 {
			ops = append(ops, Op{Kind: OpDelete, RowIndex: i, Input: PlanInput{ID: r.ID, ProviderID: e.ProviderID, MemberID: e.MemberID}})
		}
	}
	for _, i := range e.VisibleIndexes() {
		r := e.Rows[i]
		if r.ID == 0 {
			ops = append(ops, Op{Kind: OpCreate, RowIndex: i, Input: e.inputFor(r)})
			continue
		}
		found, ok := snapshot[r.ID]
		if !ok || isModified(r, found) {
			ops = append(ops, Op{Kind: OpUpdate, RowIndex: i, Input: e.inputFor(r)})
		}
	}
	return ops
}

func isModified(r, found Row) bool {
	return r.Name != found.Name ||
		r.Description != found.Description ||
		!sameAmount(r.Amount, found.Amount) ||
		!sameDueDate(found.DueDate, r.DueDate)
}

// sameAmount compares numerically when both sides parse, so "100" and
// "100.00" are the same amount.
func sameAmount(a, b string) bool {
	da, errA := decimal.NewFromString(strings.TrimSpace(a))
	db, errB := decimal.NewFromString(strings.TrimSpace(b))
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return a == b
}

func (e *Editor) inputFor(r Row) PlanInput {
	amt, _ := decimal.NewFromString(r.Amount)
	in := PlanInput{
		ID:          r.ID,
		ProviderID:  e.ProviderID,
		MemberID:    e.MemberID,
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Amount:      amt,
	}
	if r.DueDate != nil {
		in.DueDate = *r.DueDate
	}
	return in
}

// Save validates, issues all writes concurrently, waits for every one of them
// and re-fetches on success. On failure the calls that did succeed are folded
// into rows and snapshot, so saving again repeats only the failed calls; the
// returned *SaveError carries the per-call report.
func (e *Editor) Save(ctx context.Context, b Backend) (*SaveReport, error) {
	if !e.Config.CanEdit {
		return nil, ErrReadOnly
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	ops := e.Diff()
	report := &SaveReport{}
	var (
		mu   sync.Mutex
		done []appliedOp
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentWrites)
	for _, op := range ops {
		g.Go(func() error {
			saved, err := runOp(ctx, b, op)
			mu.Lock()
			defer mu.Unlock()
			report.record(op, saved, err)
			if err == nil {
				done = append(done, appliedOp{op: op, plan: saved})
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		e.settle(done)
		report.sort()
		return report, &SaveError{Report: report, Err: err}
	}
	report.sort()

	if err := e.Fetch(ctx, b); err != nil {
		return report, fmt.Errorf("fee plans saved but reload failed: %w", err)
	}
	return report, nil
}

// appliedOp is a call that took effect, with the plan the backend returned.
type appliedOp struct {
	op   Op
	plan *models.FeePlan
}

// settle makes rows and snapshot reflect calls that took effect in a failed
// save: created rows get their ID, updated rows a fresh snapshot entry and
// deleted rows are dropped.
func (e *Editor) settle(done []appliedOp) {
	var removed []int
	for _, d := range done {
		switch d.op.Kind {
		case OpCreate, OpUpdate:
			row := e.Rows[d.op.RowIndex]
			if d.plan != nil {
				row = rowFromPlan(*d.plan)
			}
			if row.ID == 0 {
				continue
			}
			e.Rows[d.op.RowIndex] = row
			e.snapshotRow(row)
		case OpDelete:
			removed = append(removed, d.op.RowIndex)
			e.dropSnapshot(d.op.Input.ID)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(removed)))
	for _, i := range removed {
		e.Rows = append(e.Rows[:i], e.Rows[i+1:]...)
	}
}

// snapshotRow records r as the persisted state of its plan.
func (e *Editor) snapshotRow(r Row) {
	if r.DueDate != nil {
		d := *r.DueDate
		r.DueDate = &d
	}
	for i := range e.Snapshot {
		if e.Snapshot[i].ID == r.ID {
			e.Snapshot[i] = r
			return
		}
	}
	e.Snapshot = append(e.Snapshot, r)
}

func (e *Editor) dropSnapshot(id uint) {
	kept := e.Snapshot[:0]
	for _, s := range e.Snapshot {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	e.Snapshot = kept
}

func runOp(ctx context.Context, b Backend, op Op) (*models.FeePlan, error) {
	switch op.Kind {
	case OpCreate:
		return b.CreatePlan(ctx, op.Input)
	case OpUpdate:
		return b.UpdatePlan(ctx, op.Input)
	case OpDelete:
		return nil, b.DeletePlan(ctx, op.Input.ID)
	}
	return nil, fmt.Errorf("unknown op %q", op.Kind)
}
