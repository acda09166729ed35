package feeplan

import (
	"sort"
	"time"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// DisplayStatus is the status shown to users. Values outside the four known
// ones are raw labels passed through from the stored status.
type DisplayStatus string

const (
	StatusPaidOffline DisplayStatus = "PAID_OFFLINE"
	StatusPaid        DisplayStatus = "PAID"
	StatusDue         DisplayStatus = "DUE"
	StatusOverdue     DisplayStatus = "OVERDUE"
)

// Classify derives the display status of a fee plan. The offline flag wins
// over the stored status, and a DUE plan whose calendar due date lies before
// today's date is shown as OVERDUE.
func Classify(status string, isOfflinePaid bool, dueDate, now time.Time) DisplayStatus {
	if isOfflinePaid {
		return StatusPaidOffline
	}
	switch status {
	case models.FeePlanStatusPaid:
		return StatusPaid
	case models.FeePlanStatusDue:
		if !dueDate.IsZero() && DateOf(dueDate).Before(DateOf(now.In(dueDate.Location()))) {
			return StatusOverdue
		}
		return StatusDue
	case models.FeePlanStatusOverdue:
		return StatusOverdue
	}
	return DisplayStatus(status)
}

// ClassifyPlan is Classify applied to a stored fee plan.
func ClassifyPlan(p models.FeePlan, now time.Time) DisplayStatus {
	return Classify(p.Status, p.IsOfflinePaid, p.DueDate, now)
}

func (s DisplayStatus) Label() string {
	switch s {
	case StatusPaidOffline:
		return "Paid Offline"
	case StatusPaid:
		return "Paid"
	case StatusDue:
		return "Due"
	case StatusOverdue:
		return "Overdue"
	}
	return string(s)
}

// Tone is the badge colour used by the views.
func (s DisplayStatus) Tone() string {
	switch s {
	case StatusPaidOffline, StatusPaid:
		return "success"
	case StatusDue:
		return "warning"
	case StatusOverdue:
		return "danger"
	}
	return "neutral"
}

// IsSettled reports whether the plan counts as paid for sorting and actions.
func (s DisplayStatus) IsSettled() bool {
	return s == StatusPaid || s == StatusPaidOffline
}

// RevertStatus is the stored status a plan returns to when its offline
// payment is withdrawn.
func RevertStatus(dueDate, now time.Time) string {
	if DateOf(dueDate).Before(DateOf(now.In(dueDate.Location()))) {
		return models.FeePlanStatusOverdue
	}
	return models.FeePlanStatusDue
}

// SortSchedule orders plans unpaid first, then by ascending due date within
// each group. The sort is stable.
func SortSchedule(plans []models.FeePlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		pi, pj := plans[i].IsSettled(), plans[j].IsSettled()
		if pi != pj {
			return !pi
		}
		return DateOf(plans[i].DueDate).Before(DateOf(plans[j].DueDate))
	})
}

// ScheduleEntry pairs a plan with its derived status for rendering.
type ScheduleEntry struct {
	models.FeePlan
	DisplayStatus DisplayStatus `json:"displayStatus"`
	StatusLabel   string        `json:"statusLabel"`
}

// BuildSchedule sorts plans and attaches display statuses.
func BuildSchedule(plans []models.FeePlan, now time.Time) []ScheduleEntry {
	sorted := append([]models.FeePlan(nil), plans...)
	SortSchedule(sorted)
	out := make([]ScheduleEntry, 0, len(sorted))
	for _, p := range sorted {
		ds := ClassifyPlan(p, now)
		out = append(out, ScheduleEntry{FeePlan: p, DisplayStatus: ds, StatusLabel: ds.Label()})
	}
	return out
}
