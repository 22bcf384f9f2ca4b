// Package jobs provides the built-in maintenance jobs that ship with the
// metronome daemon. They keep the daemon's own database healthy and double
// as reference implementations of the runner.Job interface.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/teranos/metronome/errors"
	"github.com/teranos/metronome/runner"
)

const (
	// RetentionKind identifies the run-history retention job.
	RetentionKind = "runs.retention"

	// DefaultRunRetention is how long finished run records are kept when no
	// retention period is configured.
	DefaultRunRetention = 30 * 24 * time.Hour
)

// RetentionJob prunes finished run records older than the retention period.
type RetentionJob struct {
	runs      *runner.RunStore
	retention time.Duration
}

var _ runner.Job = (*RetentionJob)(nil)

// NewRetentionJob creates a retention job. A non-positive retention falls
// back to DefaultRunRetention.
func NewRetentionJob(runs *runner.RunStore, retention time.Duration) *RetentionJob {
	if retention <= 0 {
		retention = DefaultRunRetention
	}
	return &RetentionJob{runs: runs, retention: retention}
}

func (j *RetentionJob) Kind() string { return RetentionKind }

func (j *RetentionJob) Name() string { return "Run history retention" }

func (j *RetentionJob) DefaultInterval() time.Duration { return 24 * time.Hour }

// Execute removes finished runs older than the retention period.
func (j *RetentionJob) Execute(ctx context.Context, progress *runner.Progress, target int64) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "retention cancelled before start")
	}

	progress.SetMessage(fmt.Sprintf("Pruning runs older than %s", j.retention))

	pruned, err := j.runs.PruneOlderThan(j.retention)
	if err != nil {
		return errors.Wrap(err, "failed to prune run history")
	}

	progress.SetMessage(fmt.Sprintf("Pruned %d old runs", pruned))
	return nil
}
