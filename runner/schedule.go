package runner

import (
	"time"

	"github.com/teranos/metronome/errors"
	"github.com/teranos/metronome/logger"
)

// QueueDueJobs loads all definitions and enqueues every due one with
// target 0. A scheduler tick that arrives while the worker is draining is
// dropped entirely (logged), not deferred; the next tick after the drain
// picks the jobs up. Returns the number of jobs queued.
func (e *Engine) QueueDueJobs() int {
	e.startMu.Lock()
	if e.running {
		e.startMu.Unlock()
		e.log.Infow("Worker busy, skipping scheduler pass")
		return 0
	}
	e.startMu.Unlock()

	defs, err := e.defs.LoadAll()
	if err != nil {
		e.log.Errorw("Failed to load job definitions", logger.FieldError, err)
		return 0
	}

	now := time.Now().UTC()
	queued := 0
	for _, def := range defs {
		if !def.Due(now) {
			continue
		}
		if !e.registry.Has(def.Kind) {
			e.log.Errorw("Definition refers to unregistered job kind",
				logger.FieldKind, def.Kind,
			)
			continue
		}
		e.Enqueue(def.Kind, 0)
		queued++
	}

	e.log.Infow("Scheduler pass complete", "queued", queued, "definitions", len(defs))
	return queued
}

// Initialize creates a definition for every registered job kind that does
// not have one yet. New definitions start enabled when the job declares a
// positive default interval, with the last execution set to the far-past
// sentinel so the job is due on the first scheduler pass. Existing rows
// are never touched, preserving user customization across restarts.
func (e *Engine) Initialize() error {
	existing, err := e.defs.LoadAll()
	if err != nil {
		return errors.Wrap(err, "failed to load existing definitions")
	}

	have := make(map[string]bool, len(existing))
	for _, def := range existing {
		have[def.Kind] = true
	}

	created := 0
	for _, kind := range e.registry.Kinds() {
		if have[kind] {
			continue
		}
		job := e.registry.Get(kind)
		interval := job.DefaultInterval()
		def := &Definition{
			Kind:           kind,
			Name:           job.Name(),
			Enabled:        interval > 0,
			Interval:       interval,
			LastExecutedAt: NeverRan,
		}
		if err := e.defs.Insert(def); err != nil {
			return errors.Wrapf(err, "failed to seed definition for %q", kind)
		}
		created++
		e.log.Infow("Created job definition",
			logger.FieldKind, kind,
			"enabled", def.Enabled,
			"interval", interval,
		)
	}

	if created > 0 {
		e.log.Infow("Definitions initialized", "created", created)
	}
	return nil
}

// ListAll returns all persisted job definitions.
func (e *Engine) ListAll() ([]*Definition, error) {
	return e.defs.LoadAll()
}

// NextScheduledRun returns the estimated next run time for a job kind:
// last execution plus interval. The estimate ignores queue and execution
// state.
func (e *Engine) NextScheduledRun(kind string) (time.Time, error) {
	def, err := e.defs.GetByKind(kind)
	if err != nil {
		return time.Time{}, err
	}
	return def.NextRun(), nil
}

// SaveDefinition inserts the definition if it has no ID yet, otherwise
// updates the existing row.
func (e *Engine) SaveDefinition(def *Definition) error {
	if def.ID == 0 {
		return e.defs.Insert(def)
	}
	return e.defs.Update(def)
}
