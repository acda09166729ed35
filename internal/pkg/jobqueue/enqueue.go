package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
)

// Enqueuer is the part of the queue producers depend on.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

var _ Enqueuer = (*Queue)(nil)

// KYCJobs schedules KYC work on the job queue.
type KYCJobs struct {
	queue Enqueuer
}

var _ kyc.Jobs = (*KYCJobs)(nil)

func NewKYCJobs(queue Enqueuer) *KYCJobs {
	return &KYCJobs{queue: queue}
}

func (j *KYCJobs) EnqueueDocumentPreview(ctx context.Context, verificationID uint, objectKey string) error {
	job, err := j.queue.EnqueueJob(ctx, JobTypeKYCPreview, KYCPreviewJobPayload{
		VerificationID: verificationID,
		ObjectKey:      objectKey,
	}.ToMap())
	if err != nil {
		return fmt.Errorf("failed to enqueue preview for %s: %w", objectKey, err)
	}
	log.Debugf("[JobQueue] Preview job %s queued for verification %d", job.ID, verificationID)
	return nil
}

func (j *KYCJobs) EnqueueReviewNotification(ctx context.Context, verificationID uint) error {
	if _, err := j.queue.EnqueueJob(ctx, JobTypeKYCNotify, KYCNotifyJobPayload{VerificationID: verificationID}.ToMap()); err != nil {
		return fmt.Errorf("failed to enqueue review notification for verification %d: %w", verificationID, err)
	}
	return nil
}

// OrderJobs schedules gateway verification of orders.
type OrderJobs struct {
	queue Enqueuer
}

func NewOrderJobs(queue Enqueuer) *OrderJobs {
	return &OrderJobs{queue: queue}
}

// EnqueueVerifyOrder queues a gateway lookup for the order. source is
// recorded for logging only.
func (j *OrderJobs) EnqueueVerifyOrder(ctx context.Context, orderID, source string) error {
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	if _, err := j.queue.EnqueueJob(ctx, JobTypeVerifyOrder, VerifyOrderJobPayload{OrderID: orderID, Source: source}.ToMap()); err != nil {
		return fmt.Errorf("failed to enqueue verification of %s: %w", orderID, err)
	}
	return nil
}
