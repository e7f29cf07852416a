package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/agritrack/internal/reminder"
	"github.com/i474232898/agritrack/internal/weather"
)

// DefaultInterval is the polling cadence when neither interval nor cron
// expression is configured.
const DefaultInterval = 60 * time.Second

// Gate supplies the snapshot for a pass, fetching it when due.
type Gate interface {
	Await(ctx context.Context) weather.Result
}

// Evaluator runs one reminder pass over a snapshot.
type Evaluator interface {
	Evaluate(ctx context.Context, snap weather.Snapshot) []reminder.FiredReminder
}

// Config controls the cadence of a Driver. Cron takes precedence over
// Interval when set.
type Config struct {
	Interval time.Duration
	Cron     string
	Location *time.Location
	Logger   *slog.Logger
}

// Driver ticks on a fixed cadence: each tick waits for the gate and then
// evaluates the resulting snapshot. A tick that overlaps a running one is
// dropped.
type Driver struct {
	scheduler *gocron.Scheduler
	gate      Gate
	engine    Evaluator
	interval  time.Duration
	cron      string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	busy    atomic.Bool
	stopped atomic.Bool
	ticks   atomic.Int64
	dropped atomic.Int64

	stopOnce sync.Once
}

// New creates a Driver. Start must be called to begin ticking.
func New(gate Gate, engine Evaluator, cfg Config) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		scheduler: gocron.NewScheduler(cfg.Location),
		gate:      gate,
		engine:    engine,
		interval:  cfg.Interval,
		cron:      cfg.Cron,
		logger:    cfg.Logger.With("component", "driver"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Tick runs one pass. It returns false when the pass was not run because
// another one is in progress or the driver is stopped.
func (d *Driver) Tick(ctx context.Context) bool {
	if d.stopped.Load() {
		return false
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		d.logger.Debug("tick dropped; previous tick still running")
		return false
	}
	defer d.busy.Store(false)
	d.ticks.Add(1)

	res := d.gate.Await(ctx)
	if res.Err != nil {
		d.logger.Warn("weather refresh failed; evaluating last snapshot", "error", res.Err)
	}
	if d.stopped.Load() {
		d.logger.Info("driver stopped during fetch; result ignored")
		return true
	}
	if res.Snapshot.IsEmpty() {
		return true
	}

	fired := d.engine.Evaluate(ctx, res.Snapshot)
	d.logger.Debug("tick finished", "refreshed", res.Refreshed, "fired", len(fired))
	return true
}

// Ticks is the number of passes started.
func (d *Driver) Ticks() int64 {
	return d.ticks.Load()
}

// Dropped is the number of ticks dropped due to overlap.
func (d *Driver) Dropped() int64 {
	return d.dropped.Load()
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first tick runs immediately.
func (d *Driver) Start() error {
	job := func() { d.Tick(d.ctx) }

	var err error
	if d.cron != "" {
		_, err = d.scheduler.Cron(d.cron).Do(job)
		d.logger.Info("driver scheduled", "cron", d.cron)
	} else {
		_, err = d.scheduler.Every(d.interval).Do(job)
		d.logger.Info("driver scheduled", "interval", d.interval.String())
	}
	if err != nil {
		return err
	}

	d.scheduler.StartAsync()
	return nil
}

// Stop cancels future ticks. A tick waiting on a fetch returns without
// evaluating.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		d.cancel()
		d.scheduler.Stop()
		d.logger.Info("driver stopped", "ticks", d.ticks.Load(), "dropped", d.dropped.Load())
	})
}
