package kyc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type sentMail struct{ to, subject, body string }

type fakeSender struct{ sent []sentMail }

func (f *fakeSender) Send(to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func TestNotifyReview(t *testing.T) {
	repo := newMemRepo()
	repo.byProvider[1] = &models.ProviderVerification{
		ID: 10, ProviderID: 1, Status: string(StatusPending), Remarks: "GST certificate missing",
		Provider: &models.Provider{ID: 1, Name: "Acme Academy", Email: "office@acme.test"},
	}
	repo.byProvider[2] = &models.ProviderVerification{ID: 11, ProviderID: 2, Status: string(StatusVerified), Provider: &models.Provider{ID: 2}}

	sender := &fakeSender{}
	n := NewNotifier(repo, sender, "https://feebook.test/")
	ctx := context.Background()

	require.NoError(t, n.NotifyReview(ctx, 10))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "office@acme.test", sender.sent[0].to)
	assert.Equal(t, "FeeBook verification: Action required", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].body, "GST certificate missing")
	assert.Contains(t, sender.sent[0].body, "https://feebook.test/provider/kyc/status")

	require.NoError(t, n.NotifyReview(ctx, 11))
	assert.Len(t, sender.sent, 1)

	assert.ErrorIs(t, n.NotifyReview(ctx, 99), ErrNotFound)
}
