package jobqueue

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	require.NotNil(t, job.ProcessedAt)
	assert.Equal(t, *job.ProcessedAt, job.startedAt())

	job.MarkAsFailed("gateway timeout")
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())
	job.MarkAsRetrying()
	assert.False(t, job.IsRetryable(), "only failed jobs are retryable")

	job.MarkAsProcessing()
	job.MarkAsFailed("gateway timeout")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable(), "retries exhausted")

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.CompletedAt.Before(*job.ProcessedAt))
}

func TestJobStartedAtFallsBackToUpdatedAt(t *testing.T) {
	updated := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	job := &Job{UpdatedAt: updated}
	if got := job.startedAt(); !got.Equal(updated) {
		t.Fatalf("startedAt() = %s, want %s", got, updated)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Run("verify order", func(t *testing.T) {
		original := VerifyOrderJobPayload{OrderID: "order_abc", Source: "webhook"}
		result, err := VerifyOrderJobPayloadFromMap(original.ToMap())
		require.NoError(t, err)
		assert.Equal(t, &original, result)
	})

	t.Run("kyc notify", func(t *testing.T) {
		original := KYCNotifyJobPayload{VerificationID: 17}
		result, err := KYCNotifyJobPayloadFromMap(original.ToMap())
		require.NoError(t, err)
		assert.Equal(t, &original, result)
	})

	t.Run("kyc preview", func(t *testing.T) {
		original := KYCPreviewJobPayload{VerificationID: 3, ObjectKey: "kyc/3/panCard/x.jpg"}
		result, err := KYCPreviewJobPayloadFromMap(original.ToMap())
		require.NoError(t, err)
		assert.Equal(t, &original, result)
	})
}

func TestPayloadFromStoredJSON(t *testing.T) {
	// Payloads come back from Redis as generic JSON; numbers are float64.
	var job Job
	require.NoError(t, json.Unmarshal([]byte(`{"id":"j1","type":"kyc_preview","payload":{"verification_id":12,"object_key":"kyc/1/a.png"}}`), &job))

	p, err := KYCPreviewJobPayloadFromMap(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(12), p.VerificationID)
	assert.Equal(t, "kyc/1/a.png", p.ObjectKey)

	_, err = KYCNotifyJobPayloadFromMap(map[string]interface{}{"verification_id": "twelve"})
	assert.Error(t, err)
}
