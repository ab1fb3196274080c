package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncjobs "github.com/hawkerboys/tms-api/internal/sync"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/queue"
)

type mockQueue struct {
	depth      int64
	dead       int64
	letters    []queue.DeadLetter
	requeued   []string
	enqueued   [][2]string
	requeueErr error
}

func (m *mockQueue) Enqueue(_ context.Context, kind, entityID string) (string, error) {
	m.enqueued = append(m.enqueued, [2]string{kind, entityID})
	return "job-1", nil
}

func (m *mockQueue) Depth(_ context.Context) (int64, error)           { return m.depth, nil }
func (m *mockQueue) DeadLetterCount(_ context.Context) (int64, error) { return m.dead, nil }

func (m *mockQueue) DeadLetters(_ context.Context, _ int64) ([]queue.DeadLetter, error) {
	return m.letters, nil
}

func (m *mockQueue) Requeue(_ context.Context, jobID string) error {
	if m.requeueErr != nil {
		return m.requeueErr
	}
	m.requeued = append(m.requeued, jobID)
	return nil
}

func TestSyncServiceStatus(t *testing.T) {
	q := &mockQueue{depth: 4, dead: 2}
	svc := NewSyncService(q, zap.NewNop())

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4), status.Pending)
	require.Equal(t, int64(2), status.DeadLetters)
}

func TestSyncServiceTriggerRejectsUnknownKind(t *testing.T) {
	svc := NewSyncService(&mockQueue{}, zap.NewNop())

	_, err := svc.Trigger(context.Background(), syncjobs.JobKind("invoice"), "x")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSyncServiceTriggerEnqueues(t *testing.T) {
	q := &mockQueue{}
	svc := NewSyncService(q, zap.NewNop())

	jobID, err := svc.Trigger(context.Background(), syncjobs.KindCourse, "crs-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, [2]string{"course", "crs-1"}, q.enqueued[0])
}

func TestSyncServiceRequeueMissingJob(t *testing.T) {
	q := &mockQueue{requeueErr: errors.New("not found")}
	svc := NewSyncService(q, zap.NewNop())

	err := svc.Requeue(context.Background(), "job-x")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
