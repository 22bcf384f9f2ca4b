package runner

import "time"

// NeverRan is the last-execution sentinel for definitions that have not
// run yet. Any enabled interval measured against it is immediately due.
var NeverRan = time.Unix(0, 0).UTC()

// Definition is the persisted scheduling record for a job kind.
// One row per registered kind, created at initialization time and updated
// after every scheduler-triggered execution. User edits to Enabled and
// Interval survive restarts; Initialize never overwrites an existing row.
type Definition struct {
	ID             int64         `json:"id"`
	Kind           string        `json:"kind"`
	Name           string        `json:"name"`
	Enabled        bool          `json:"enabled"`
	Interval       time.Duration `json:"interval"` // minute granularity, persisted as whole minutes
	LastExecutedAt time.Time     `json:"last_executed_at"`
	LastSuccess    bool          `json:"last_success"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Due reports whether the definition is due at now: enabled, and strictly
// more than one interval has elapsed since the last execution. Elapsed
// time exactly equal to the interval is not due.
func (d *Definition) Due(now time.Time) bool {
	return d.Enabled && now.Sub(d.LastExecutedAt) > d.Interval
}

// NextRun returns the estimated next scheduled run time. The estimate
// ignores current queue and execution state.
func (d *Definition) NextRun() time.Time {
	return d.LastExecutedAt.Add(d.Interval)
}
