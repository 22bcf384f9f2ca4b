package runner

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/metronome/logger"
)

// Engine owns the pending-work queue and the single-flight worker that
// drains it. At most one job executes at a time across the whole engine;
// duplicate requests for a queued (kind, target) pair are coalesced.
//
// The worker is spawned lazily on the first enqueue and exits when the
// queue drains; no goroutine is kept alive while idle. The running flag
// is cleared in a deferred step that also recovers panics, so a crashed
// worker can never wedge the engine.
type Engine struct {
	registry *Registry
	defs     *DefinitionStore
	runs     *RunStore
	sink     Sink
	log      *zap.SugaredLogger

	parentCtx context.Context // threaded into every job execution

	// startMu guards the worker-spawn decision; held only around the
	// running check, never across execution.
	startMu sync.Mutex
	running bool

	// queueMu guards queue mutation; held only around each append,
	// peek, or remove, never across execution.
	queueMu sync.Mutex
	queue   []Descriptor
}

// NewEngine creates an engine backed by the given database. Handlers must
// be registered with the registry and Initialize called before the first
// scheduler pass. A nil sink gets a fresh Broadcaster; a nil logger is
// replaced with a no-op.
func NewEngine(db *sql.DB, registry *Registry, sink Sink, log *zap.SugaredLogger) *Engine {
	return NewEngineWithContext(context.Background(), db, registry, sink, log)
}

// NewEngineWithContext creates an engine whose job executions receive the
// given parent context. Cancelling it signals cooperative shutdown to
// jobs that honor their context; the engine itself never aborts a running
// job.
func NewEngineWithContext(ctx context.Context, db *sql.DB, registry *Registry, sink Sink, log *zap.SugaredLogger) *Engine {
	if sink == nil {
		sink = NewBroadcaster()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		registry:  registry,
		defs:      NewDefinitionStore(db),
		runs:      NewRunStore(db),
		sink:      sink,
		log:       log.Named("runner"),
		parentCtx: ctx,
	}
}

// Enqueue adds a (kind, target) request to the queue and ensures a worker
// is draining it. A duplicate of an already-queued descriptor is a logged
// no-op. Enqueue returns as soon as the descriptor is queued; it never
// waits for execution. target 0 marks a scheduler-triggered run with no
// specific entity.
func (e *Engine) Enqueue(kind string, target int64) {
	desc := Descriptor{Kind: kind, Target: target}

	e.queueMu.Lock()
	for _, queued := range e.queue {
		if queued == desc {
			e.queueMu.Unlock()
			e.log.Debugw("Job already queued, skipping",
				logger.FieldKind, kind,
				logger.FieldTarget, target,
			)
			return
		}
	}
	e.queue = append(e.queue, desc)
	e.queueMu.Unlock()

	e.log.Debugw("Job queued", logger.FieldKind, kind, logger.FieldTarget, target)

	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.running {
		// The active worker loops until the queue is empty, so the new
		// entry will be picked up without spawning anything.
		e.log.Debugw("Worker already active", logger.FieldKind, kind, logger.FieldTarget, target)
		return
	}
	e.running = true
	go e.drain()
}

// Running reports whether a worker is currently draining the queue.
func (e *Engine) Running() bool {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.running
}

// Pending returns a snapshot of the queued descriptors in FIFO order.
func (e *Engine) Pending() []Descriptor {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	pending := make([]Descriptor, len(e.queue))
	copy(pending, e.queue)
	return pending
}

// Definitions exposes the definition store for callers that manage
// definitions directly (CLI, UI).
func (e *Engine) Definitions() *DefinitionStore { return e.defs }

// Runs exposes the execution-history store.
func (e *Engine) Runs() *RunStore { return e.runs }

// drain is the worker loop. It peeks the head of the queue, executes it
// with no locks held, removes that entry by value (tolerating concurrent
// enqueues during execution), and repeats until the queue is empty.
//
// The deferred cleanup clears the running flag on every exit path,
// including a panic escaping the per-job boundary; without it every
// future enqueue would see a phantom worker and the engine would be
// permanently wedged.
func (e *Engine) drain() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("Worker crashed", "panic", r)
		}
		e.startMu.Lock()
		e.running = false
		e.startMu.Unlock()
	}()

	for {
		e.queueMu.Lock()
		if len(e.queue) == 0 {
			e.queueMu.Unlock()
			return
		}
		next := e.queue[0]
		e.queueMu.Unlock()

		e.runOne(next)

		e.queueMu.Lock()
		for i, queued := range e.queue {
			if queued == next {
				e.queue = append(e.queue[:i], e.queue[i+1:]...)
				break
			}
		}
		e.queueMu.Unlock()
	}
}

// runOne executes a single queue entry inside an isolated failure
// boundary: a fault here is logged and the loop moves on to the next
// entry.
func (e *Engine) runOne(desc Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("Job execution panicked",
				logger.FieldKind, desc.Kind,
				logger.FieldTarget, desc.Target,
				"panic", r,
			)
		}
	}()

	e.execute(desc)
}
