package membership

import (
	"errors"
	"fmt"
	"time"
)

// ConflictError is returned when the consumer already claimed the member.
type ConflictError struct {
	MembershipID uint
}

func (e *ConflictError) Error() string {
	return "membership already exists"
}

// SchedulePath is the consumer page of a membership's fee plans.
func SchedulePath(membershipID uint) string {
	return fmt.Sprintf("/consumer/memberships/%d", membershipID)
}

// OutcomeKind classifies the result of a claim.
type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeConflict OutcomeKind = "conflict"
	OutcomeFailed   OutcomeKind = "failed"
)

// ClaimOutcome tells the page what to do after a claim call.
type ClaimOutcome struct {
	Kind         OutcomeKind   `json:"kind"`
	MembershipID uint          `json:"membershipId,omitempty"`
	Toast        string        `json:"toast,omitempty"`
	Navigate     string        `json:"navigate,omitempty"`
	Delay        time.Duration `json:"delay,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// InterpretClaim maps a claim result to the follow-up. A conflict sends the
// consumer to the existing membership after ConflictRedirectDelay; other
// failures stay on the review step.
func InterpretClaim(membershipID uint, err error) ClaimOutcome {
	if err == nil {
		return ClaimOutcome{
			Kind:         OutcomeCreated,
			MembershipID: membershipID,
			Toast:        "Membership added",
			Navigate:     SchedulePath(membershipID),
		}
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return ClaimOutcome{
			Kind:         OutcomeConflict,
			MembershipID: conflict.MembershipID,
			Toast:        "Membership already exists",
			Navigate:     SchedulePath(conflict.MembershipID),
			Delay:        ConflictRedirectDelay,
		}
	}
	return ClaimOutcome{Kind: OutcomeFailed, Error: err.Error()}
}

// Apply records a failed outcome on the wizard. Other outcomes leave it as is.
func (w *Wizard) Apply(o ClaimOutcome) {
	if o.Kind == OutcomeFailed {
		w.Error = o.Error
	}
}
