package feeplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
)

// maxInstallments caps expansion of open-ended rules.
const maxInstallments = 60

var ErrInvalidSchedule = errors.New("invalid installment schedule")

// InstallmentSpec describes a series of equal plans following an RRULE,
// e.g. "FREQ=MONTHLY;COUNT=10".
type InstallmentSpec struct {
	BaseName    string       `json:"baseName"`
	Description string       `json:"description"`
	Amount      string       `json:"amount"`
	Start       CalendarDate `json:"start"`
	Rule        string       `json:"rule"`
}

// ExpandInstallments turns an installment rule into unsaved editor rows named
// "<base> (i/n)".
func ExpandInstallments(spec InstallmentSpec) ([]Row, error) {
	if strings.TrimSpace(spec.BaseName) == "" || spec.Start.IsZero() {
		return nil, fmt.Errorf("%w: name and start date are required", ErrInvalidSchedule)
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(spec.Amount))
	if err != nil || !amt.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidSchedule)
	}
	rule, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(spec.Rule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	rule.DTStart(time.Date(spec.Start.Year, spec.Start.Month, spec.Start.Day, 0, 0, 0, 0, time.UTC))

	var dates []CalendarDate
	next := rule.Iterator()
	for len(dates) < maxInstallments {
		t, ok := next()
		if !ok {
			break
		}
		dates = append(dates, DateOf(t))
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: rule yields no dates", ErrInvalidSchedule)
	}

	rows := make([]Row, 0, len(dates))
	for i, d := range dates {
		name := strings.TrimSpace(spec.BaseName)
		if len(dates) > 1 {
			name = fmt.Sprintf("%s (%d/%d)", name, i+1, len(dates))
		}
		rows = append(rows, Row{
			Name:        name,
			Description: spec.Description,
			Amount:      amt.String(),
			DueDate:     &d,
		})
	}
	return rows, nil
}

// AddInstallments appends expanded rows. A lone empty row is replaced.
func (e *Editor) AddInstallments(spec InstallmentSpec) (int, error) {
	if !e.Config.CanEdit {
		return 0, ErrReadOnly
	}
	rows, err := ExpandInstallments(spec)
	if err != nil {
		return 0, err
	}
	if len(e.Rows) == 1 && isBlank(e.Rows[0]) {
		e.Rows = e.Rows[:0]
	}
	e.Rows = append(e.Rows, rows...)
	return len(rows), nil
}

func isBlank(r Row) bool {
	return r.ID == 0 && strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Amount) == "" &&
		strings.TrimSpace(r.Description) == "" && r.DueDate == nil
}
