package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/metronome/errors"
	qt "github.com/teranos/metronome/internal/testing"
)

func TestDefinitionDue(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		def  Definition
		want bool
	}{
		{
			name: "never ran is immediately due",
			def:  Definition{Enabled: true, Interval: time.Hour, LastExecutedAt: NeverRan},
			want: true,
		},
		{
			name: "elapsed greater than interval",
			def:  Definition{Enabled: true, Interval: time.Hour, LastExecutedAt: now.Add(-61 * time.Minute)},
			want: true,
		},
		{
			name: "elapsed exactly equal to interval is not due",
			def:  Definition{Enabled: true, Interval: time.Hour, LastExecutedAt: now.Add(-time.Hour)},
			want: false,
		},
		{
			name: "elapsed less than interval",
			def:  Definition{Enabled: true, Interval: time.Hour, LastExecutedAt: now.Add(-30 * time.Minute)},
			want: false,
		},
		{
			name: "disabled is never due",
			def:  Definition{Enabled: false, Interval: time.Hour, LastExecutedAt: NeverRan},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.Due(now))
		})
	}
}

func TestQueueDueJobsEnqueuesAndRunsDueDefinitions(t *testing.T) {
	job := &stubJob{kind: "test.backup", interval: 60 * time.Minute}
	engine := newTestEngine(t, job)

	// Fresh definition has never run, so it is due
	queued := engine.QueueDueJobs()
	assert.Equal(t, 1, queued)
	waitIdle(t, engine)

	// Immediately after the run nothing is due until the interval elapses
	queued = engine.QueueDueJobs()
	assert.Equal(t, 0, queued)
}

func TestQueueDueJobsSkipsDisabledDefinitions(t *testing.T) {
	job := &stubJob{kind: "test.disabled", interval: time.Hour}
	engine := newTestEngine(t, job)

	def, err := engine.defs.GetByKind("test.disabled")
	require.NoError(t, err)
	def.Enabled = false
	require.NoError(t, engine.defs.Update(def))

	assert.Equal(t, 0, engine.QueueDueJobs())
}

func TestQueueDueJobsSkippedWhileWorkerBusy(t *testing.T) {
	job := &stubJob{kind: "test.busy", interval: time.Hour}
	engine := newTestEngine(t, job)

	engine.startMu.Lock()
	engine.running = true
	engine.startMu.Unlock()

	assert.Equal(t, 0, engine.QueueDueJobs())
	assert.Empty(t, engine.Pending(), "a busy-worker pass must queue nothing")

	engine.startMu.Lock()
	engine.running = false
	engine.startMu.Unlock()

	assert.Equal(t, 1, engine.QueueDueJobs())
	waitIdle(t, engine)
}

func TestQueueDueJobsSkipsUnregisteredKinds(t *testing.T) {
	engine := newTestEngine(t, &stubJob{kind: "test.known", interval: time.Hour})

	// A stale row left behind after a job kind was removed from the binary
	orphan := &Definition{
		Kind:           "test.removed",
		Name:           "Removed job",
		Enabled:        true,
		Interval:       time.Minute,
		LastExecutedAt: NeverRan,
	}
	require.NoError(t, engine.defs.Insert(orphan))

	queued := engine.QueueDueJobs()
	assert.Equal(t, 1, queued, "only the registered kind should queue")
	waitIdle(t, engine)
}

func TestInitializeSeedsMissingDefinitions(t *testing.T) {
	jobA := &stubJob{kind: "test.a", interval: time.Hour}
	jobB := &stubJob{kind: "test.b", interval: 0}

	conn := qt.CreateTestDB(t)
	registry := NewRegistry()
	registry.Register(jobA)
	registry.Register(jobB)
	engine := NewEngine(conn, registry, nil, nil)

	require.NoError(t, engine.Initialize())

	defA, err := engine.defs.GetByKind("test.a")
	require.NoError(t, err)
	assert.True(t, defA.Enabled)
	assert.Equal(t, time.Hour, defA.Interval)
	assert.True(t, defA.LastExecutedAt.Equal(NeverRan))

	// A zero default interval seeds a disabled definition
	defB, err := engine.defs.GetByKind("test.b")
	require.NoError(t, err)
	assert.False(t, defB.Enabled)
}

func TestInitializePreservesExistingRows(t *testing.T) {
	job := &stubJob{kind: "test.custom", interval: time.Hour}
	engine := newTestEngine(t, job)

	// User customizes the schedule
	def, err := engine.defs.GetByKind("test.custom")
	require.NoError(t, err)
	def.Enabled = false
	def.Interval = 5 * time.Minute
	require.NoError(t, engine.defs.Update(def))

	// A restart re-runs Initialize; the customization survives
	require.NoError(t, engine.Initialize())

	after, err := engine.defs.GetByKind("test.custom")
	require.NoError(t, err)
	assert.False(t, after.Enabled)
	assert.Equal(t, 5*time.Minute, after.Interval)

	all, err := engine.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1, "Initialize must not duplicate rows")
}

func TestNextScheduledRun(t *testing.T) {
	job := &stubJob{kind: "test.next", interval: 30 * time.Minute}
	engine := newTestEngine(t, job)

	next, err := engine.NextScheduledRun("test.next")
	require.NoError(t, err)
	assert.True(t, next.Equal(NeverRan.Add(30*time.Minute)))

	_, err = engine.NextScheduledRun("test.missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSaveDefinitionInsertsAndUpdates(t *testing.T) {
	conn := qt.CreateTestDB(t)
	engine := NewEngine(conn, NewRegistry(), nil, nil)

	def := &Definition{
		Kind:           "test.save",
		Name:           "Save test",
		Enabled:        true,
		Interval:       time.Minute,
		LastExecutedAt: NeverRan,
	}
	require.NoError(t, engine.SaveDefinition(def))
	require.NotZero(t, def.ID)

	def.Enabled = false
	require.NoError(t, engine.SaveDefinition(def))

	stored, err := engine.defs.GetByKind("test.save")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}
