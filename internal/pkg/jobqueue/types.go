package jobqueue

import (
	"time"

	"github.com/goccy/go-json"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeVerifyOrder JobType = "verify_order"
	JobTypeKYCNotify   JobType = "kyc_notify"
	JobTypeKYCPreview  JobType = "kyc_preview"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// VerifyOrderJobPayload asks the gateway for the final state of an order.
type VerifyOrderJobPayload struct {
	OrderID string `json:"order_id"`
	Source  string `json:"source"` // webhook, verify_page
}

func (p VerifyOrderJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_id": p.OrderID,
		"source":   p.Source,
	}
}

func VerifyOrderJobPayloadFromMap(data map[string]interface{}) (*VerifyOrderJobPayload, error) {
	var payload VerifyOrderJobPayload
	err := fromMap(data, &payload)
	return &payload, err
}

// KYCNotifyJobPayload mails the provider the outcome of a review.
type KYCNotifyJobPayload struct {
	VerificationID uint `json:"verification_id"`
}

func (p KYCNotifyJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"verification_id": p.VerificationID,
	}
}

func KYCNotifyJobPayloadFromMap(data map[string]interface{}) (*KYCNotifyJobPayload, error) {
	var payload KYCNotifyJobPayload
	err := fromMap(data, &payload)
	return &payload, err
}

// KYCPreviewJobPayload renders a WebP preview of an uploaded image document.
type KYCPreviewJobPayload struct {
	VerificationID uint   `json:"verification_id"`
	ObjectKey      string `json:"object_key"`
}

func (p KYCPreviewJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"verification_id": p.VerificationID,
		"object_key":      p.ObjectKey,
	}
}

func KYCPreviewJobPayloadFromMap(data map[string]interface{}) (*KYCPreviewJobPayload, error) {
	var payload KYCPreviewJobPayload
	err := fromMap(data, &payload)
	return &payload, err
}

// fromMap round-trips through JSON so numbers decoded as float64 land in
// typed fields.
func fromMap(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

func (j *Job) startedAt() time.Time {
	if j.ProcessedAt != nil {
		return *j.ProcessedAt
	}
	return j.UpdatedAt
}
