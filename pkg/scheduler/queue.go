// Package scheduler implements the Scheduler & Worker Pool (spec.md
// §4.9): a process-wide cron sweep, a bounded job queue, and a fixed
// worker pool with per-job hard/soft timeouts and per-user coalescing.
// No pack example repo imports a dedicated cron-parsing library as a
// direct dependency, so cadence scheduling here is a simple ticker over
// the Cadence enum's fixed interval rather than generic 5-field cron
// parsing (see DESIGN.md).
package scheduler

import (
	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Job is one unit of scheduler work: a search run for one user.
type Job struct {
	UserID  uuid.UUID
	Trigger store.TriggerType
}

// Queue is a bounded MPMC job queue (§4.9: capacity 256 default,
// QUEUE_FULL on overflow).
type Queue struct {
	ch chan Job
}

// NewQueue constructs a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Job, capacity)}
}

// Enqueue attempts a non-blocking send; a full queue returns a TRANSIENT
// error tagged QUEUE_FULL per §4.9/§7 (a retryable condition, not a hard
// failure).
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return apperrors.New(apperrors.KindTransient, "QUEUE_FULL: scheduler job queue at capacity")
	}
}

// Channel exposes the receive side for workers.
func (q *Queue) Channel() <-chan Job { return q.ch }

// Len reports current queue depth, used by health/detailed reporting.
func (q *Queue) Len() int { return len(q.ch) }
