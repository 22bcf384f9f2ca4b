package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the observable state of an execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Progress is the handle observers watch while a job executes. The engine
// creates one per execution, registers it with the sink, and releases it
// on every exit path. Jobs update the current message as work proceeds;
// the engine owns the status transitions.
//
// All accessors are safe for concurrent use; a UI thread may read a
// handle while the worker mutates it.
type Progress struct {
	id        string
	kind      string
	name      string
	target    int64
	startedAt time.Time

	mu      sync.Mutex
	status  Status
	message string
	notify  func(ProgressUpdate)
}

// ProgressUpdate is an immutable snapshot of a progress handle, sent to
// sink subscribers on every change.
type ProgressUpdate struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Target    int64     `json:"target"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NewProgress creates a progress handle in the running state.
func NewProgress(kind, name string, target int64) *Progress {
	return &Progress{
		id:        uuid.NewString(),
		kind:      kind,
		name:      name,
		target:    target,
		startedAt: time.Now().UTC(),
		status:    StatusRunning,
	}
}

// ID returns the unique identifier for this execution.
func (p *Progress) ID() string { return p.id }

// Kind returns the job kind being executed.
func (p *Progress) Kind() string { return p.kind }

// Name returns the job's display name.
func (p *Progress) Name() string { return p.name }

// Target returns the target entity for this run (0 = none).
func (p *Progress) Target() int64 { return p.target }

// StartedAt returns when the handle was created.
func (p *Progress) StartedAt() time.Time { return p.startedAt }

// Status returns the current execution status.
func (p *Progress) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Message returns the current progress message.
func (p *Progress) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// SetMessage updates the current progress message. Jobs call this as work
// proceeds; subscribers see the change immediately.
func (p *Progress) SetMessage(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()
	p.publish()
}

// SetStatus updates the execution status.
func (p *Progress) SetStatus(status Status) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	p.publish()
}

// Complete marks the execution completed.
func (p *Progress) Complete() {
	p.SetStatus(StatusCompleted)
}

// Fail marks the execution failed with a message naming the job.
func (p *Progress) Fail(message string) {
	p.mu.Lock()
	p.status = StatusFailed
	p.message = message
	p.mu.Unlock()
	p.publish()
}

// Snapshot returns an immutable copy of the handle's current state.
func (p *Progress) Snapshot() ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressUpdate{
		ID:        p.id,
		Kind:      p.kind,
		Name:      p.name,
		Target:    p.target,
		Status:    p.status,
		Message:   p.message,
		StartedAt: p.startedAt,
	}
}

// setNotify installs the sink's change callback. Called by the sink on
// Register; cleared on Release.
func (p *Progress) setNotify(fn func(ProgressUpdate)) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

// publish sends the current snapshot to the sink callback, if any.
// The callback is invoked without holding the handle's lock.
func (p *Progress) publish() {
	p.mu.Lock()
	fn := p.notify
	update := ProgressUpdate{
		ID:        p.id,
		Kind:      p.kind,
		Name:      p.name,
		Target:    p.target,
		Status:    p.status,
		Message:   p.message,
		StartedAt: p.startedAt,
	}
	p.mu.Unlock()

	if fn != nil {
		fn(update)
	}
}
