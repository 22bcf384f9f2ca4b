package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker periodically triggers the engine's scheduler pass. It is the
// in-process stand-in for an external supervisor timer: each tick calls
// QueueDueJobs, which is itself a no-op while the worker is busy.
type Ticker struct {
	engine   *Engine
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
}

// TickerConfig contains configuration for the scheduler ticker.
type TickerConfig struct {
	Interval time.Duration // How often to check for due jobs
}

// DefaultTickerConfig returns sensible defaults.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval: time.Minute,
	}
}

// NewTicker creates a scheduler ticker for the engine.
func NewTicker(engine *Engine, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), engine, cfg, log)
}

// NewTickerWithContext creates a ticker with a parent context.
func NewTickerWithContext(ctx context.Context, engine *Engine, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ticker{
		engine:   engine,
		interval: cfg.Interval,
		ctx:      tickerCtx,
		cancel:   cancel,
		log:      log.Named("ticker"),
	}
}

// Start begins the ticker loop.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.log.Infow("Scheduler ticker started", "interval", t.interval)
}

// Stop gracefully stops the ticker.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.log.Infow("Scheduler ticker stopped")
}

// run is the main ticker loop.
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			t.mu.Unlock()

			t.engine.QueueDueJobs()
		}
	}
}

// Stats returns ticker statistics.
func (t *Ticker) Stats() (lastTickAt time.Time, ticks int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTickAt, t.ticksSinceStart
}
