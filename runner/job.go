// Package runner provides the metronome job engine: a FIFO queue of job
// requests drained by a single lazily-started worker, interval-based
// scheduling over persisted job definitions, and progress reporting.
package runner

import (
	"context"
	"time"
)

// Job defines the interface for a registered unit of background work.
// Application packages implement this interface for their job kinds,
// allowing the engine to remain decoupled from domain logic.
//
// Handlers identify themselves by a stable kind key. The engine routes
// queued requests by kind and never inspects what a job actually does.
type Job interface {
	// Kind returns the stable key identifying this job implementation
	// (e.g., "runs.retention", "db.vacuum"). Used for registration,
	// queue routing, and the persisted definition's kind column.
	Kind() string

	// Name returns the human-readable display name for the job.
	Name() string

	// DefaultInterval returns the recurrence interval used when a
	// definition is first created for this job. A zero or negative
	// interval creates the definition disabled.
	DefaultInterval() time.Duration

	// Execute runs the job and returns any error encountered.
	// The progress handle may be updated as work proceeds; observers
	// watch it through the notification sink. target scopes the run to
	// a specific entity; 0 means a scheduler-triggered run with no
	// specific target.
	//
	// Context cancellation is cooperative: jobs that can stop early
	// should check ctx.Done() periodically. The engine itself never
	// cancels a job mid-run.
	Execute(ctx context.Context, progress *Progress, target int64) error
}

// Descriptor identifies one queued unit of work: a job kind plus an
// optional target. Descriptors are ephemeral - created on enqueue,
// discarded once the worker has executed them. Equality is structural on
// both fields; the queue holds at most one descriptor per (kind, target)
// pair.
type Descriptor struct {
	Kind   string
	Target int64 // 0 = scheduler-triggered, no specific entity
}
