package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type recorder struct {
	mu   sync.Mutex
	jobs []Job
	errs map[string]int
	fail func(Job) error
}

func (r *recorder) handle(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if r.fail != nil {
		return r.fail(job)
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueueDeliversEnqueuedJobs(t *testing.T) {
	rdb := newTestRedis(t)
	rec := &recorder{}
	q := New("sync-test", rdb, rec.handle, Config{Workers: 2, RetryDelay: 5 * time.Millisecond})

	jobID, err := q.Enqueue(context.Background(), "course", "course-1")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	q.Start(context.Background())
	defer q.Stop()

	waitFor(t, func() bool { return rec.count() == 1 })
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "course", rec.jobs[0].Kind)
	assert.Equal(t, "course-1", rec.jobs[0].EntityID)
	assert.Equal(t, jobID, rec.jobs[0].ID)
}

func TestQueueSurvivesRestart(t *testing.T) {
	rdb := newTestRedis(t)
	rec := &recorder{}

	producer := New("sync-test", rdb, nil, Config{})
	_, err := producer.Enqueue(context.Background(), "enrollment", "enr-1")
	require.NoError(t, err)

	depth, err := producer.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	// A separate consumer instance drains what the producer pushed.
	consumer := New("sync-test", rdb, rec.handle, Config{Workers: 1})
	consumer.Start(context.Background())
	defer consumer.Stop()

	waitFor(t, func() bool { return rec.count() == 1 })
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	rdb := newTestRedis(t)
	rec := &recorder{fail: func(Job) error { return errors.New("registry down") }}
	q := New("sync-test", rdb, rec.handle, Config{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	_, err := q.Enqueue(context.Background(), "attendance", "att-1")
	require.NoError(t, err)

	q.Start(context.Background())
	defer q.Stop()

	// 1 initial attempt + 2 retries.
	waitFor(t, func() bool { return rec.count() == 3 })
	waitFor(t, func() bool {
		n, err := q.DeadLetterCount(context.Background())
		return err == nil && n == 1
	})

	letters, err := q.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "att-1", letters[0].Job.EntityID)
	assert.Contains(t, letters[0].Error, "registry down")
}

func TestQueueRecoversAfterTransientFailure(t *testing.T) {
	rdb := newTestRedis(t)
	var calls int
	var mu sync.Mutex
	rec := &recorder{}
	rec.fail = func(Job) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}
	q := New("sync-test", rdb, rec.handle, Config{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	_, err := q.Enqueue(context.Background(), "class_run", "run-1")
	require.NoError(t, err)

	q.Start(context.Background())
	defer q.Stop()

	waitFor(t, func() bool { return rec.count() == 3 })
	n, err := q.DeadLetterCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRequeueDeadLetter(t *testing.T) {
	rdb := newTestRedis(t)
	rec := &recorder{fail: func(Job) error { return errors.New("permanent-ish") }}
	q := New("sync-test", rdb, rec.handle, Config{Workers: 1, MaxRetries: 1, RetryDelay: 5 * time.Millisecond})

	jobID, err := q.Enqueue(context.Background(), "course", "course-9")
	require.NoError(t, err)

	q.Start(context.Background())
	waitFor(t, func() bool {
		n, err := q.DeadLetterCount(context.Background())
		return err == nil && n == 1
	})
	q.Stop()

	require.NoError(t, q.Requeue(context.Background(), jobID))
	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
	n, err := q.DeadLetterCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
