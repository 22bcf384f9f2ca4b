package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/metronome/errors"
	"github.com/teranos/metronome/runner"
)

// VacuumKind identifies the database vacuum job.
const VacuumKind = "db.vacuum"

// VacuumJob reclaims free pages in the SQLite database. Retention deletes
// rows but SQLite keeps the pages allocated until a VACUUM rewrites the
// file.
type VacuumJob struct {
	db *sql.DB
}

var _ runner.Job = (*VacuumJob)(nil)

// NewVacuumJob creates a vacuum job for the given database handle.
func NewVacuumJob(db *sql.DB) *VacuumJob {
	return &VacuumJob{db: db}
}

func (j *VacuumJob) Kind() string { return VacuumKind }

func (j *VacuumJob) Name() string { return "Database vacuum" }

func (j *VacuumJob) DefaultInterval() time.Duration { return 7 * 24 * time.Hour }

// Execute rewrites the database file to reclaim free pages.
func (j *VacuumJob) Execute(ctx context.Context, progress *runner.Progress, target int64) error {
	progress.SetMessage("Vacuuming database")

	if _, err := j.db.ExecContext(ctx, "VACUUM"); err != nil {
		return errors.Wrap(err, "vacuum failed")
	}

	progress.SetMessage("Vacuum complete")
	return nil
}
