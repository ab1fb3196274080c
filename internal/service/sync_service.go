package service

import (
	"context"

	"go.uber.org/zap"

	syncjobs "github.com/hawkerboys/tms-api/internal/sync"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/queue"
)

type jobQueue interface {
	Enqueue(ctx context.Context, kind, entityID string) (string, error)
	Depth(ctx context.Context) (int64, error)
	DeadLetterCount(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, limit int64) ([]queue.DeadLetter, error)
	Requeue(ctx context.Context, jobID string) error
}

// SyncStatus summarises the state of the registry sync queue.
type SyncStatus struct {
	Pending     int64 `json:"pending"`
	DeadLetters int64 `json:"dead_letters"`
}

// SyncService exposes queue introspection and manual sync triggers to
// operators.
type SyncService struct {
	queue  jobQueue
	logger *zap.Logger
}

// NewSyncService constructs SyncService.
func NewSyncService(q jobQueue, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{queue: q, logger: logger}
}

// Status reports queue depth and dead letter count.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	pending, err := s.queue.Depth(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read queue depth")
	}
	dead, err := s.queue.DeadLetterCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read dead letter count")
	}
	return &SyncStatus{Pending: pending, DeadLetters: dead}, nil
}

// DeadLetters returns the most recent dead-lettered jobs.
func (s *SyncService) DeadLetters(ctx context.Context, limit int64) ([]queue.DeadLetter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	letters, err := s.queue.DeadLetters(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dead letters")
	}
	return letters, nil
}

// Requeue moves a dead-lettered job back onto the queue with a reset
// attempt counter.
func (s *SyncService) Requeue(ctx context.Context, jobID string) error {
	if err := s.queue.Requeue(ctx, jobID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "dead letter not found")
	}
	s.logger.Info("dead letter requeued", zap.String("job_id", jobID))
	return nil
}

// Trigger manually queues a sync job for one entity.
func (s *SyncService) Trigger(ctx context.Context, kind syncjobs.JobKind, entityID string) (string, error) {
	if !kind.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown sync kind")
	}
	if entityID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "entity id required")
	}
	jobID, err := s.queue.Enqueue(ctx, string(kind), entityID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync job")
	}
	s.logger.Info("manual sync queued", zap.String("kind", string(kind)), zap.String("entity_id", entityID), zap.String("job_id", jobID))
	return jobID, nil
}
