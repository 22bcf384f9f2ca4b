package runner

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/metronome/errors"
)

// Run status constants for type safety
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents a single execution of a job.
//
// Each time a job executes, a Run record is created to track timing,
// status, and any error. This provides execution history for debugging,
// monitoring, and failure troubleshooting. Run rows are written for
// targeted and scheduler-triggered runs alike; only the definition's
// schedule clock distinguishes the two.
type Run struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Target int64  `json:"target"`

	Status string `json:"status"` // "running", "completed", "failed"
	Error  string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun creates a run record in the running state.
func NewRun(kind string, target int64) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		Status:    RunStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete marks the run as completed.
func (r *Run) Complete() {
	r.finish(RunStatusCompleted, "")
}

// Fail marks the run as failed with the given error.
func (r *Run) Fail(err error) {
	r.finish(RunStatusFailed, err.Error())
}

func (r *Run) finish(status, errMsg string) {
	now := time.Now().UTC()
	duration := now.Sub(r.StartedAt).Milliseconds()
	r.Status = status
	r.Error = errMsg
	r.CompletedAt = &now
	r.DurationMs = &duration
	r.UpdatedAt = now
}

// RunStore handles persistence of job execution history.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new run store.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a new run record.
func (s *RunStore) Create(run *Run) error {
	query := `
		INSERT INTO job_runs (
			id, kind, target, status, error,
			started_at, completed_at, duration_ms,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	var durationMs interface{}
	if run.DurationMs != nil {
		durationMs = *run.DurationMs
	}
	var errMsg interface{}
	if run.Error != "" {
		errMsg = run.Error
	}

	_, err := s.db.Exec(query,
		run.ID,
		run.Kind,
		run.Target,
		run.Status,
		errMsg,
		run.StartedAt.UTC().Format(time.RFC3339),
		completedAt,
		durationMs,
		run.CreatedAt.Format(time.RFC3339),
		run.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create run")
	}

	return nil
}

// Finish updates a run record with its final status and timing.
func (s *RunStore) Finish(run *Run) error {
	query := `
		UPDATE job_runs
		SET status = ?,
		    error = ?,
		    completed_at = ?,
		    duration_ms = ?,
		    updated_at = ?
		WHERE id = ?
	`

	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	var durationMs interface{}
	if run.DurationMs != nil {
		durationMs = *run.DurationMs
	}
	var errMsg interface{}
	if run.Error != "" {
		errMsg = run.Error
	}

	result, err := s.db.Exec(query,
		run.Status,
		errMsg,
		completedAt,
		durationMs,
		run.UpdatedAt.Format(time.RFC3339),
		run.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to finish run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "run %s", run.ID)
	}

	return nil
}

// List returns recent runs for a kind, newest first. An empty kind lists
// runs for all kinds.
func (s *RunStore) List(kind string, limit int) ([]*Run, error) {
	var query string
	var args []interface{}

	base := `SELECT id, kind, target, status, error, started_at, completed_at, duration_ms, created_at, updated_at FROM job_runs`
	if kind != "" {
		query = base + ` WHERE kind = ? ORDER BY started_at DESC LIMIT ?`
		args = []interface{}{kind, limit}
	} else {
		query = base + ` ORDER BY started_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating runs")
	}

	return runs, nil
}

// PruneOlderThan removes finished runs whose last update is older than the
// given age. Returns the number of rows removed.
func (s *RunStore) PruneOlderThan(age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)

	query := `
		DELETE FROM job_runs
		WHERE status IN ('completed', 'failed')
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune old runs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var errMsg, completedAt sql.NullString
	var durationMs sql.NullInt64
	var startedAt, createdAt, updatedAt string

	err := rows.Scan(
		&run.ID,
		&run.Kind,
		&run.Target,
		&run.Status,
		&errMsg,
		&startedAt,
		&completedAt,
		&durationMs,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan run")
	}

	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if durationMs.Valid {
		run.DurationMs = &durationMs.Int64
	}

	run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse started_at for run %s", run.ID)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse completed_at for run %s", run.ID)
		}
		run.CompletedAt = &t
	}
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for run %s", run.ID)
	}
	run.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for run %s", run.ID)
	}

	return &run, nil
}
