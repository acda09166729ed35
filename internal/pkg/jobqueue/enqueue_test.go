package jobqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	jobs []*Job
	err  error
}

func (r *recordingEnqueuer) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	job := &Job{ID: "job-" + string(jobType), Type: jobType, Payload: payload}
	r.jobs = append(r.jobs, job)
	return job, nil
}

func TestKYCJobs(t *testing.T) {
	q := &recordingEnqueuer{}
	jobs := NewKYCJobs(q)
	ctx := context.Background()

	require.NoError(t, jobs.EnqueueDocumentPreview(ctx, 5, "kyc/2/aadhaarFront/x.jpg"))
	require.NoError(t, jobs.EnqueueReviewNotification(ctx, 5))
	require.Len(t, q.jobs, 2)

	preview, err := KYCPreviewJobPayloadFromMap(q.jobs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, JobTypeKYCPreview, q.jobs[0].Type)
	assert.Equal(t, "kyc/2/aadhaarFront/x.jpg", preview.ObjectKey)
	assert.Equal(t, JobTypeKYCNotify, q.jobs[1].Type)
}

func TestOrderJobs(t *testing.T) {
	q := &recordingEnqueuer{}
	jobs := NewOrderJobs(q)
	ctx := context.Background()

	require.NoError(t, jobs.EnqueueVerifyOrder(ctx, "order_7", "webhook"))
	assert.Error(t, jobs.EnqueueVerifyOrder(ctx, "", "webhook"))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "order_7", q.jobs[0].Payload["order_id"])

	q.err = errors.New("redis down")
	err := jobs.EnqueueVerifyOrder(ctx, "order_8", "verify_page")
	assert.ErrorIs(t, err, q.err)
}
