package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type fakeOrders struct {
	calls []string
	err   error
}

func (f *fakeOrders) VerifyOrder(ctx context.Context, orderID string) (*models.Transaction, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Transaction{OrderID: orderID, Status: models.TransactionStatusSuccess}, nil
}

type fakeNotifier struct{ ids []uint }

func (f *fakeNotifier) NotifyReview(ctx context.Context, verificationID uint) error {
	f.ids = append(f.ids, verificationID)
	return nil
}

type fakePreviews struct{ keys []string }

func (f *fakePreviews) RenderPreview(ctx context.Context, objectKey string) (string, error) {
	f.keys = append(f.keys, objectKey)
	return "previews/" + objectKey, nil
}

func TestNewQueueWorkerDefault(t *testing.T) {
	for workers, want := range map[int]int{5: 5, 0: defaultWorkers, -1: defaultWorkers} {
		q := NewQueueWithClient(nil, workers)
		if q.workers != want {
			t.Fatalf("NewQueueWithClient(%d).workers = %d, want %d", workers, q.workers, want)
		}
		if q.running || q.retryDelay != time.Minute {
			t.Fatalf("unexpected initial state: running=%v retryDelay=%s", q.running, q.retryDelay)
		}
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	q := NewQueueWithClient(nil, 1)
	q.Stop()
	assert.False(t, q.running)
}

func TestDispatch(t *testing.T) {
	orders := &fakeOrders{}
	notifier := &fakeNotifier{}
	previews := &fakePreviews{}
	q := NewQueueWithClient(nil, 1)
	q.SetProcessors(Processors{Orders: orders, Notifier: notifier, Previews: previews})
	ctx := context.Background()

	require.NoError(t, q.dispatch(ctx, &Job{Type: JobTypeVerifyOrder, Payload: VerifyOrderJobPayload{OrderID: "order_1"}.ToMap()}))
	require.NoError(t, q.dispatch(ctx, &Job{Type: JobTypeKYCNotify, Payload: KYCNotifyJobPayload{VerificationID: 9}.ToMap()}))
	require.NoError(t, q.dispatch(ctx, &Job{Type: JobTypeKYCPreview, Payload: KYCPreviewJobPayload{VerificationID: 9, ObjectKey: "kyc/1/pan/a.png"}.ToMap()}))

	assert.Equal(t, []string{"order_1"}, orders.calls)
	assert.Equal(t, []uint{9}, notifier.ids)
	assert.Equal(t, []string{"kyc/1/pan/a.png"}, previews.keys)
}

func TestDispatchErrors(t *testing.T) {
	ctx := context.Background()
	q := NewQueueWithClient(nil, 1)

	err := q.dispatch(ctx, &Job{Type: JobTypeKYCNotify, Payload: KYCNotifyJobPayload{VerificationID: 1}.ToMap()})
	assert.ErrorIs(t, err, ErrNoProcessor)

	err = q.dispatch(ctx, &Job{Type: "image_processing"})
	assert.EqualError(t, err, "unknown job type: image_processing")

	err = q.dispatch(ctx, &Job{ID: "j1", Type: JobTypeVerifyOrder, Payload: map[string]interface{}{}})
	assert.EqualError(t, err, "verify order job j1 has no order id")

	gatewayDown := errors.New("gateway down")
	q.SetProcessors(Processors{Orders: &fakeOrders{err: gatewayDown}})
	err = q.dispatch(ctx, &Job{Type: JobTypeVerifyOrder, Payload: VerifyOrderJobPayload{OrderID: "order_2"}.ToMap()})
	assert.ErrorIs(t, err, gatewayDown)
}

func newRedisQueue(t *testing.T) (*Queue, context.Context) {
	t.Helper()

	return NewQueueWithClient(testRedis(t), 1), context.Background()
}

func TestQueue_EnqueueAndProcess(t *testing.T) {
	queue, ctx := newRedisQueue(t)
	notifier := &fakeNotifier{}
	queue.SetProcessors(Processors{Notifier: notifier})

	created, err := queue.EnqueueJob(ctx, JobTypeKYCNotify, KYCNotifyJobPayload{VerificationID: 4}.ToMap())
	require.NoError(t, err)

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, job.ID)

	queue.processJob(ctx, job)
	assert.Equal(t, []uint{4}, notifier.ids)

	_, err = queue.GetJob(ctx, created.ID)
	assert.ErrorIs(t, err, redis.Nil)

	processing, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, processing)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusCompleted])
}

func TestQueue_FailedJobIsRetried(t *testing.T) {
	queue, ctx := newRedisQueue(t)
	queue.SetProcessors(Processors{Orders: &fakeOrders{err: errors.New("timeout")}})

	created, err := queue.EnqueueJob(ctx, JobTypeVerifyOrder, VerifyOrderJobPayload{OrderID: "order_9"}.ToMap())
	require.NoError(t, err)
	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)

	queue.processJob(ctx, job)

	stored, err := queue.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMsg, "timeout")

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
	delayed, err := queue.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, delayed)

	moved, err := queue.promoteDelayed(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved, "retry is not due yet")

	moved, err = queue.promoteDelayed(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	retried, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, retried.ID)
}

func TestQueue_PermanentFailure(t *testing.T) {
	queue, ctx := newRedisQueue(t)

	job := &Job{ID: "exhausted", Type: JobTypeVerifyOrder, Payload: map[string]interface{}{}, RetryCount: 2, MaxRetries: 3}
	queue.updateJob(ctx, job)
	queue.processJob(ctx, job)

	stored, err := queue.GetJob(ctx, "exhausted")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusFailed])
}

func TestQueue_RecoverStuck(t *testing.T) {
	queue, ctx := newRedisQueue(t)
	now := time.Now()
	started := now.Add(-time.Hour)
	fresh := now.Add(-time.Minute)

	stuck := &Job{ID: "stuck", Type: JobTypeKYCNotify, Status: JobStatusProcessing, ProcessedAt: &started}
	busy := &Job{ID: "busy", Type: JobTypeKYCNotify, Status: JobStatusProcessing, ProcessedAt: &fresh}
	queue.updateJob(ctx, stuck)
	queue.updateJob(ctx, busy)
	require.NoError(t, queue.client.LPush(ctx, JobProcessingKey, "stuck", "busy", "expired").Err())

	n, err := queue.recoverStuck(ctx, now, stuckAfter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := queue.client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, pending)

	processing, err := queue.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, processing)

	stored, err := queue.GetJob(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}

func TestDequeueDropsExpiredJob(t *testing.T) {
	queue, ctx := newRedisQueue(t)
	require.NoError(t, queue.client.LPush(ctx, JobQueueKey, "gone").Err())

	_, err := queue.dequeueJob(ctx)
	assert.ErrorIs(t, err, redis.Nil)

	n, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
