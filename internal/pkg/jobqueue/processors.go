package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/app/models"
)

// ErrNoProcessor is returned when a job type has no configured processor.
var ErrNoProcessor = errors.New("no processor configured for job type")

// OrderVerifier confirms an order's state with the payment gateway.
type OrderVerifier interface {
	VerifyOrder(ctx context.Context, orderID string) (*models.Transaction, error)
}

// ReviewNotifier tells a provider about a KYC review decision.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, verificationID uint) error
}

// PreviewRenderer stores a preview image of a KYC document and returns its key.
type PreviewRenderer interface {
	RenderPreview(ctx context.Context, objectKey string) (string, error)
}

// Processors are the services jobs are dispatched to.
type Processors struct {
	Orders   OrderVerifier
	Notifier ReviewNotifier
	Previews PreviewRenderer
}

// dispatch runs the processor matching the job type.
func (q *Queue) dispatch(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeVerifyOrder:
		return q.processVerifyOrderJob(ctx, job)
	case JobTypeKYCNotify:
		return q.processKYCNotifyJob(ctx, job)
	case JobTypeKYCPreview:
		return q.processKYCPreviewJob(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (q *Queue) processVerifyOrderJob(ctx context.Context, job *Job) error {
	payload, err := VerifyOrderJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid verify order payload: %w", err)
	}
	if payload.OrderID == "" {
		return fmt.Errorf("verify order job %s has no order id", job.ID)
	}
	if q.processors.Orders == nil {
		return fmt.Errorf("%w: %s", ErrNoProcessor, job.Type)
	}
	t, err := q.processors.Orders.VerifyOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("verify order %s: %w", payload.OrderID, err)
	}
	log.Infof("[JobQueue] Order %s verified (status=%s, source=%s)", payload.OrderID, t.Status, payload.Source)
	return nil
}

func (q *Queue) processKYCNotifyJob(ctx context.Context, job *Job) error {
	payload, err := KYCNotifyJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid kyc notify payload: %w", err)
	}
	if q.processors.Notifier == nil {
		return fmt.Errorf("%w: %s", ErrNoProcessor, job.Type)
	}
	return q.processors.Notifier.NotifyReview(ctx, payload.VerificationID)
}

func (q *Queue) processKYCPreviewJob(ctx context.Context, job *Job) error {
	payload, err := KYCPreviewJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid kyc preview payload: %w", err)
	}
	if payload.ObjectKey == "" {
		return fmt.Errorf("kyc preview job %s has no object key", job.ID)
	}
	if q.processors.Previews == nil {
		return fmt.Errorf("%w: %s", ErrNoProcessor, job.Type)
	}
	key, err := q.processors.Previews.RenderPreview(ctx, payload.ObjectKey)
	if err != nil {
		return err
	}
	log.Infof("[JobQueue] Preview %s rendered for verification %d", key, payload.VerificationID)
	return nil
}
