package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
)

const (
	// Redis keys. Job bodies live under JobKeyPrefix+<id>; the lists and the
	// delayed set only hold ids.
	JobKeyPrefix     = "jobs:job:"
	JobQueueKey      = "jobs:pending"
	JobProcessingKey = "jobs:processing"
	JobDelayedKey    = "jobs:delayed"
	JobStatsKey      = "jobs:stats"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultWorkers   = 3
	stuckAfter       = 10 * time.Minute
	stuckScanEvery   = time.Minute
	promoteEvery     = time.Second
	dequeueBlockTime = time.Second
)

// Queue is a Redis list backed job queue with a fixed pool of workers.
// Failed jobs wait in a sorted set scored by the time they become due again.
type Queue struct {
	client     *redis.Client
	processors Processors
	retryDelay time.Duration
	workers    int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue on the shared Redis client.
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{client: client, retryDelay: time.Minute, workers: workers}
}

// SetProcessors configures the services jobs are dispatched to. Call before Start.
func (q *Queue) SetProcessors(p Processors) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors = p
}

// Start launches the workers and the maintenance loop. It is a no-op when
// the queue already runs.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true

	log.Infof("[JobQueue] Starting %d workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.maintain(ctx)
}

// Stop cancels the workers and waits for the running jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	q.cancel()
	q.wg.Wait()
	q.running = false
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log.Debugf("[JobQueue] Worker %d started", id)
	for ctx.Err() == nil {
		job, err := q.dequeueJob(ctx)
		switch {
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		case err != nil:
			log.Errorf("[JobQueue] Worker %d: dequeue failed: %v", id, err)
			sleep(ctx, time.Second)
			continue
		}
		log.Infof("[JobQueue] Worker %d processing job %s (type=%s)", id, job.ID, job.Type)
		// A job that started keeps running on its own context so Stop does
		// not abort a gateway call halfway.
		q.processJob(context.WithoutCancel(ctx), job)
	}
	log.Debugf("[JobQueue] Worker %d stopping", id)
}

// maintain moves due retries back to the pending list and recovers jobs
// left in processing by a crashed worker.
func (q *Queue) maintain(ctx context.Context) {
	defer q.wg.Done()
	promote := time.NewTicker(promoteEvery)
	defer promote.Stop()
	scan := time.NewTicker(stuckScanEvery)
	defer scan.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-promote.C:
			if _, err := q.promoteDelayed(ctx, now); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue] Promote delayed jobs failed: %v", err)
			}
		case now := <-scan.C:
			if _, err := q.recoverStuck(ctx, now, stuckAfter); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue] Stuck job scan failed: %v", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// EnqueueJob stores the job and pushes it onto the pending list.
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (type=%s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob atomically moves the next id to the processing list and loads
// its body. Ids whose body expired or is unreadable are dropped.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, dequeueBlockTime).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

// processJob runs the job. Failures are scheduled again with a linear
// backoff until MaxRetries is used up.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.dispatch(ctx, job)
	switch {
	case err == nil:
		log.Infof("[JobQueue] Job %s completed", job.ID)
		job.MarkAsCompleted()
		q.incrStat(ctx, JobStatusCompleted)
		if err := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to remove completed job %s: %v", job.ID, err)
		}
	default:
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())
		if job.IsRetryable() {
			job.MarkAsRetrying()
			due := time.Now().Add(q.retryDelay * time.Duration(job.RetryCount))
			log.Infof("[JobQueue] Retrying job %s at %s (attempt %d/%d)", job.ID, due.Format(time.RFC3339), job.RetryCount, job.MaxRetries)
			q.updateJob(ctx, job)
			if err := q.client.ZAdd(ctx, JobDelayedKey, redis.Z{Score: float64(due.UnixMilli()), Member: job.ID}).Err(); err != nil {
				log.Errorf("[JobQueue] Failed to schedule retry of job %s: %v", job.ID, err)
			}
		} else {
			log.Errorf("[JobQueue] Job %s permanently failed after %d attempts", job.ID, job.RetryCount)
			q.updateJob(ctx, job)
			q.incrStat(ctx, JobStatusFailed)
		}
	}
	q.removeFromProcessing(ctx, job.ID)
}

// promoteDelayed pushes every retry due at now back onto the pending list.
func (q *Queue) promoteDelayed(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		// Only the caller that removes the id from the set requeues it.
		n, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// recoverStuck requeues jobs that have been processing for longer than
// maxAge and drops processing entries without a readable body.
func (q *Queue) recoverStuck(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Load of processing job %s failed: %v", id, err)
			}
			q.removeFromProcessing(ctx, id)
			continue
		}
		if job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}
		if age := now.Sub(job.startedAt()); age > maxAge {
			log.Warnf("[JobQueue] Recovering stuck job %s (type=%s, age=%s)", job.ID, job.Type, age)
			job.Status = JobStatusPending
			job.ErrorMsg = "recovered after worker loss"
			job.UpdatedAt = now
			q.updateJob(ctx, job)
			q.removeFromProcessing(ctx, id)
			if err := q.client.RPush(ctx, JobQueueKey, id).Err(); err != nil {
				return recovered, err
			}
			recovered++
		}
	}
	return recovered, nil
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing: %v", id, err)
	}
}

func (q *Queue) incrStat(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob loads a job body. A missing job returns redis.Nil.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetJobStats returns the lifetime counters per status.
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[JobStatus]int64, len(raw))
	for status, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[JobStatus(status)] = n
		}
	}
	return out, nil
}

// GetQueueSize returns the number of pending jobs.
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of jobs being processed.
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}

// GetDelayedSize returns the number of jobs waiting for a retry.
func (q *Queue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobDelayedKey).Result()
}
