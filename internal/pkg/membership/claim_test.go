package membership

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretClaim(t *testing.T) {
	created := InterpretClaim(12, nil)
	assert.Equal(t, OutcomeCreated, created.Kind)
	assert.Equal(t, "/consumer/memberships/12", created.Navigate)
	assert.Zero(t, created.Delay)

	conflict := InterpretClaim(0, fmt.Errorf("claim: %w", &ConflictError{MembershipID: 7}))
	assert.Equal(t, OutcomeConflict, conflict.Kind)
	assert.Equal(t, uint(7), conflict.MembershipID)
	assert.Equal(t, "/consumer/memberships/7", conflict.Navigate)
	assert.Equal(t, ConflictRedirectDelay, conflict.Delay)
	assert.Equal(t, "Membership already exists", conflict.Toast)

	failed := InterpretClaim(0, errors.New("network down"))
	assert.Equal(t, OutcomeFailed, failed.Kind)
	assert.Empty(t, failed.Navigate)
	assert.Equal(t, "network down", failed.Error)
}

func TestApplyOnlyRecordsFailures(t *testing.T) {
	w := &Wizard{Step: StepReview}
	w.Apply(InterpretClaim(3, &ConflictError{MembershipID: 3}))
	assert.Empty(t, w.Error)
	assert.Equal(t, StepReview, w.Step)

	w.Apply(InterpretClaim(0, errors.New("server error")))
	assert.Equal(t, "server error", w.Error)
	assert.Equal(t, StepReview, w.Step)
}
