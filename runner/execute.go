package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/teranos/metronome/errors"
	"github.com/teranos/metronome/logger"
)

// execute resolves and runs one queued descriptor. Every fault is
// recovered here: an unresolvable kind or missing definition abandons the
// attempt, a job error marks the run failed. Nothing propagates to the
// worker loop.
func (e *Engine) execute(desc Descriptor) {
	job := e.registry.Get(desc.Kind)
	if job == nil {
		e.log.Errorw("No job registered for kind, abandoning execution",
			logger.FieldKind, desc.Kind,
			logger.FieldTarget, desc.Target,
		)
		return
	}

	def, err := e.defs.GetByKind(desc.Kind)
	if err != nil {
		// Every registered job gets a definition at Initialize time, so
		// this is a data-consistency fault. Fatal to this execution only.
		e.log.Errorw("Missing definition for registered job, abandoning execution",
			logger.FieldKind, desc.Kind,
			logger.FieldTarget, desc.Target,
			logger.FieldError, err,
		)
		return
	}

	progress := NewProgress(desc.Kind, job.Name(), desc.Target)
	e.sink.Register(progress)
	defer e.sink.Release(progress)

	run := NewRun(desc.Kind, desc.Target)
	if err := e.runs.Create(run); err != nil {
		// History is observability, not schedule state - keep going.
		e.log.Warnw("Failed to record run start", logger.FieldKind, desc.Kind, logger.FieldError, err)
	}

	e.log.Infow("Executing job", logger.FieldKind, desc.Kind, logger.FieldTarget, desc.Target, logger.FieldRunID, run.ID)

	start := time.Now()
	jobErr := invokeJob(e.parentCtx, job, progress, desc.Target)
	elapsed := time.Since(start)

	def.LastExecutedAt = time.Now().UTC()
	if jobErr != nil {
		def.LastSuccess = false
		progress.Fail(fmt.Sprintf("%s failed: %v", job.Name(), jobErr))
		run.Fail(jobErr)
		e.log.Errorw("Job failed",
			logger.FieldKind, desc.Kind,
			logger.FieldTarget, desc.Target,
			logger.FieldRunID, run.ID,
			logger.FieldDurationMS, elapsed.Milliseconds(),
			logger.FieldError, jobErr,
		)
	} else {
		def.LastSuccess = true
		progress.Complete()
		run.Complete()
		e.log.Infow("Job completed",
			logger.FieldKind, desc.Kind,
			logger.FieldTarget, desc.Target,
			logger.FieldRunID, run.ID,
			logger.FieldDurationMS, elapsed.Milliseconds(),
		)
	}

	if err := e.runs.Finish(run); err != nil {
		e.log.Warnw("Failed to record run result", logger.FieldKind, desc.Kind, logger.FieldError, err)
	}

	// Only scheduler-triggered runs update the persisted schedule clock.
	// A targeted, one-off invocation must not reset the interval for the
	// job's general schedule.
	if desc.Target == 0 {
		if err := e.SaveDefinition(def); err != nil {
			e.log.Errorw("Failed to persist definition after run",
				logger.FieldKind, desc.Kind,
				logger.FieldError, err,
			)
		}
	}
}

// invokeJob runs the implementation's Execute inside a panic boundary so
// a panicking job surfaces as an ordinary job failure.
func invokeJob(ctx context.Context, job Job, progress *Progress, target int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("job panicked: %v", r)
		}
	}()
	return job.Execute(ctx, progress, target)
}
