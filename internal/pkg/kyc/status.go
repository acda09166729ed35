package kyc

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the state of a provider's verification. NoSubmission stands for
// a provider without any verification record.
type Status string

const (
	StatusNoSubmission Status = "NO_SUBMISSION"
	StatusProcessing   Status = "PROCESSING"
	StatusPending      Status = "PENDING"
	StatusVerified     Status = "VERIFIED"
	StatusRejected     Status = "REJECTED"
)

// Statuses lists every state in workflow order.
var Statuses = []Status{StatusNoSubmission, StatusProcessing, StatusPending, StatusVerified, StatusRejected}

var (
	ErrUnknownStatus     = errors.New("unknown verification status")
	ErrInvalidTransition = errors.New("verification status does not allow this action")
)

// ParseStatus maps a stored value to a Status. Empty means no submission.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case "", StatusNoSubmission:
		return StatusNoSubmission, nil
	case StatusProcessing, StatusPending, StatusVerified, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanSubmit reports whether a provider in this state may send the KYC form.
func (s Status) CanSubmit() (bool, error) {
	switch s {
	case StatusNoSubmission, StatusPending, StatusRejected:
		return true, nil
	case StatusProcessing, StatusVerified:
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanReview reports whether back office may decide on this state.
func (s Status) CanReview() (bool, error) {
	switch s {
	case StatusProcessing:
		return true, nil
	case StatusNoSubmission, StatusPending, StatusVerified, StatusRejected:
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Transition validates from -> to and returns the new status.
func Transition(from, to Status) (Status, error) {
	var ok bool
	var err error
	switch to {
	case StatusProcessing:
		ok, err = from.CanSubmit()
	case StatusVerified, StatusRejected, StatusPending:
		ok, err = from.CanReview()
	case StatusNoSubmission:
		ok = false
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// Decision is a back-office review outcome.
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionRequestInfo Decision = "request_info"
)

// Target returns the status a decision leads to.
func (d Decision) Target() (Status, error) {
	switch d {
	case DecisionApprove:
		return StatusVerified, nil
	case DecisionReject:
		return StatusRejected, nil
	case DecisionRequestInfo:
		return StatusPending, nil
	}
	return "", fmt.Errorf("unknown review decision %q", string(d))
}
