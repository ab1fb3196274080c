package sync

import (
	"context"
	"fmt"

	"github.com/hawkerboys/tms-api/pkg/queue"
)

// JobKind identifies which entity a sync job targets. The queue carries kinds
// as plain strings; everything past the dequeue boundary works with this type.
type JobKind string

const (
	KindCourse     JobKind = "course"
	KindClassRun   JobKind = "class_run"
	KindEnrollment JobKind = "enrollment"
	KindAttendance JobKind = "attendance"
)

// Valid reports whether the kind is one the syncer can dispatch.
func (k JobKind) Valid() bool {
	switch k {
	case KindCourse, KindClassRun, KindEnrollment, KindAttendance:
		return true
	}
	return false
}

// Handle dispatches a dequeued job to the matching sync function. It
// satisfies queue.Handler. An unknown kind fails immediately: retrying cannot
// fix a malformed job, so the queue retries it out and dead-letters it.
func (s *Syncer) Handle(ctx context.Context, job queue.Job) error {
	switch JobKind(job.Kind) {
	case KindCourse:
		return s.SyncCourse(ctx, job.EntityID)
	case KindClassRun:
		return s.SyncClassRun(ctx, job.EntityID)
	case KindEnrollment:
		return s.SyncEnrollment(ctx, job.EntityID)
	case KindAttendance:
		return s.SyncAttendance(ctx, job.EntityID)
	default:
		return fmt.Errorf("unknown sync job kind %q", job.Kind)
	}
}
