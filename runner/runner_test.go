package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	qt "github.com/teranos/metronome/internal/testing"
)

// stubJob is a configurable Job implementation for tests.
type stubJob struct {
	kind     string
	interval time.Duration
	execute  func(ctx context.Context, progress *Progress, target int64) error
}

func (j *stubJob) Kind() string                   { return j.kind }
func (j *stubJob) Name() string                   { return "Stub " + j.kind }
func (j *stubJob) DefaultInterval() time.Duration { return j.interval }

func (j *stubJob) Execute(ctx context.Context, progress *Progress, target int64) error {
	if j.execute == nil {
		return nil
	}
	return j.execute(ctx, progress, target)
}

// newTestEngine builds an engine over an in-memory database with the given
// jobs registered and definitions seeded.
func newTestEngine(t *testing.T, jobs ...Job) *Engine {
	t.Helper()

	conn := qt.CreateTestDB(t)
	registry := NewRegistry()
	for _, job := range jobs {
		registry.Register(job)
	}

	engine := NewEngine(conn, registry, nil, nil)
	require.NoError(t, engine.Initialize())
	return engine
}

// waitIdle blocks until the engine's worker has exited with an empty queue.
func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !e.Running() && len(e.Pending()) == 0
	}, 5*time.Second, 10*time.Millisecond, "worker did not drain")
}
