// Package queue provides a durable Redis-backed work queue with an
// in-process worker pool. Jobs survive process restarts: Enqueue pushes
// onto a Redis list and any worker process pops from it. Jobs that keep
// failing land on a dead-letter list for operator inspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Job is the serialized unit of work. Kind is the wire-level job
// identifier; callers resolve it back to a typed handler on dequeue.
type Job struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id"`
	Attempt  int       `json:"attempt"`
	Enqueued time.Time `json:"enqueued_at"`
}

// DeadLetter wraps a job that exhausted its retry budget together with
// the error that killed it.
type DeadLetter struct {
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Handler processes a dequeued job.
type Handler func(context.Context, Job) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration
	Logger     *zap.Logger
}

// Queue couples a named Redis list with a worker pool. Producers only
// need Enqueue and never call Start; consumers run Start in a dedicated
// worker process.
type Queue struct {
	name    string
	rdb     *redis.Client
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
	logger     *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a queue bound to the given Redis client.
func New(name string, rdb *redis.Client, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		rdb:        rdb,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		jobTimeout: cfg.JobTimeout,
		logger:     cfg.Logger,
	}
}

func (q *Queue) key() string     { return "queue:" + q.name }
func (q *Queue) deadKey() string { return "queue:" + q.name + ":dead" }

// Enqueue pushes a new job and returns its id. Callers treat this as
// fire-and-forget: a failed enqueue never rolls back the local write
// that preceded it.
func (q *Queue) Enqueue(ctx context.Context, kind, entityID string) (string, error) {
	job := Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		EntityID: entityID,
		Enqueued: time.Now().UTC(),
	}
	if err := q.push(ctx, job); err != nil {
		return "", err
	}
	q.logger.Info("job enqueued",
		zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("kind", kind), zap.String("entity_id", entityID))
	return job.ID, nil
}

func (q *Queue) push(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key(), raw).Err(); err != nil {
		return fmt.Errorf("enqueue on %s: %w", q.name, err)
	}
	return nil
}

// Depth returns the number of jobs waiting on the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key()).Result()
}

// DeadLetterCount returns the number of dead-lettered jobs.
func (q *Queue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.deadKey()).Result()
}

// DeadLetters returns the most recent dead-lettered jobs, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := q.rdb.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	letters := make([]DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			q.logger.Warn("skipping malformed dead letter", zap.String("queue", q.name), zap.Error(err))
			continue
		}
		letters = append(letters, dl)
	}
	return letters, nil
}

// Requeue moves a dead-lettered job back onto the queue by id.
func (q *Queue) Requeue(ctx context.Context, jobID string) error {
	raws, err := q.rdb.LRange(ctx, q.deadKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("scan dead letters: %w", err)
	}
	for _, raw := range raws {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		if dl.Job.ID != jobID {
			continue
		}
		if err := q.rdb.LRem(ctx, q.deadKey(), 1, raw).Err(); err != nil {
			return fmt.Errorf("remove dead letter: %w", err)
		}
		dl.Job.Attempt = 0
		return q.push(ctx, dl.Job)
	}
	return fmt.Errorf("dead letter %s not found", jobID)
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		res, err := q.rdb.BRPop(q.ctx, time.Second, q.key()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if q.ctx.Err() != nil {
				return
			}
			q.logger.Warn("dequeue failed", zap.String("queue", q.name), zap.Int("worker", workerID), zap.Error(err))
			_ = sleepContext(q.ctx, time.Second)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error("discarding undecodable job", zap.String("queue", q.name), zap.Error(err))
			continue
		}

		jobCtx, cancel := context.WithTimeout(q.ctx, q.jobTimeout)
		err = q.handler(jobCtx, job)
		cancel()
		if err != nil {
			q.handleFailure(job, err)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.deadLetter(job, err)
		return
	}

	delay := q.retryDelay
	for i := 1; i < job.Attempt; i++ {
		delay *= 2
	}
	q.logger.Warn("job failed, retrying",
		zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("kind", job.Kind),
		zap.Int("attempt", job.Attempt), zap.Duration("delay", delay), zap.Error(err))

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		if err := sleepContext(q.ctx, delay); err != nil {
			// Shutting down: put the job straight back so another
			// worker process picks it up without the delay.
			if pushErr := q.push(context.Background(), j); pushErr != nil {
				q.logger.Error("failed to requeue job during shutdown", zap.String("job_id", j.ID), zap.Error(pushErr))
			}
			return
		}
		if pushErr := q.push(q.ctx, j); pushErr != nil {
			q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(pushErr))
		}
	}(job)
}

func (q *Queue) deadLetter(job Job, cause error) {
	dl := DeadLetter{Job: job, Error: cause.Error(), FailedAt: time.Now().UTC()}
	raw, err := json.Marshal(dl)
	if err != nil {
		q.logger.Error("failed to encode dead letter", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if err := q.rdb.LPush(context.Background(), q.deadKey(), raw).Err(); err != nil {
		q.logger.Error("failed to store dead letter", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	q.logger.Error("job dead-lettered",
		zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Error(cause))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
