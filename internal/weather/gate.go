package weather

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
)

// SnapshotKey is the document key the latest snapshot is persisted under.
const SnapshotKey = "weather_snapshot"

const (
	DefaultCooldown     = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// ErrGateClosed marks a fetch whose result arrived after Close.
var ErrGateClosed = errors.New("weather: gate closed")

// GateState is the fetch state of a Gate.
type GateState int32

const (
	GateIdle GateState = iota
	GateFetching
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// Result describes the outcome of waiting on the gate. Snapshot is always
// the snapshot to use for this round, stale or not.
type Result struct {
	Snapshot  Snapshot
	Refreshed bool
	Err       error
}

// GateConfig holds the collaborators of a Gate.
type GateConfig struct {
	Fetcher   Fetcher
	Documents store.Documents
	Location  func() Location
	Cooldown  time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

type flight struct {
	done      chan struct{}
	snapshot  Snapshot
	refreshed bool
	err       error
}

// Gate owns the latest snapshot and limits upstream fetches to one in
// flight and at most one success per cooldown window. A failed fetch does
// not start the cooldown, so the next request may retry immediately.
type Gate struct {
	fetcher  Fetcher
	docs     store.Documents
	location func() Location
	cooldown time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       GateState
	inflight    *flight
	snapshot    Snapshot
	lastSuccess time.Time
	closed      bool

	fetches atomic.Int64
}

// NewGate creates an idle Gate with an empty snapshot.
func NewGate(cfg GateConfig) *Gate {
	g := &Gate{
		fetcher:  cfg.Fetcher,
		docs:     cfg.Documents,
		location: cfg.Location,
		cooldown: cfg.Cooldown,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if g.cooldown <= 0 {
		g.cooldown = DefaultCooldown
	}
	if g.timeout <= 0 {
		g.timeout = DefaultFetchTimeout
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "gate")
	if g.now == nil {
		g.now = time.Now
	}
	if g.location == nil {
		g.location = func() Location { return Location{} }
	}
	return g
}

// Restore loads the last persisted snapshot. It does not start the
// cooldown, so the first request after startup still fetches.
func (g *Gate) Restore(ctx context.Context) error {
	if g.docs == nil {
		return nil
	}
	var snap Snapshot
	if err := g.docs.Load(ctx, SnapshotKey, &snap); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperr.Wrap(apperr.CodePersistence, "load weather snapshot", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.snapshot.IsEmpty() {
		g.snapshot = snap
	}
	return nil
}

// Snapshot returns the cached snapshot and starts a background fetch when
// the gate is idle and outside the cooldown window.
func (g *Gate) Snapshot() Snapshot {
	g.begin()
	return g.Current()
}

// Await starts a fetch if one is due, or joins the one in flight, and
// waits for it. Within the cooldown it returns the cached snapshot at once.
func (g *Gate) Await(ctx context.Context) Result {
	f := g.begin()
	if f == nil {
		return Result{Snapshot: g.Current()}
	}

	select {
	case <-f.done:
		return Result{Snapshot: f.snapshot, Refreshed: f.refreshed, Err: f.err}
	case <-ctx.Done():
		return Result{
			Snapshot: g.Current(),
			Err:      apperr.Wrap(apperr.CodeFetch, "wait for weather fetch", ctx.Err()),
		}
	}
}

// Current returns the cached snapshot without triggering a fetch.
func (g *Gate) Current() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}

// State reports whether a fetch is in flight.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Fetches is the number of fetches started since creation.
func (g *Gate) Fetches() int64 {
	return g.fetches.Load()
}

// Invalidate ends the current cooldown window, e.g. after the location
// changed. An in-flight fetch is not affected.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSuccess = time.Time{}
}

// Close stops new fetches. A fetch already in flight may finish, but its
// result is discarded.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

func (g *Gate) begin() *flight {
	loc := g.location()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	if g.inflight != nil {
		return g.inflight
	}
	if !g.lastSuccess.IsZero() && g.now().Sub(g.lastSuccess) < g.cooldown {
		return nil
	}

	f := &flight{done: make(chan struct{})}
	g.inflight = f
	g.state = GateFetching
	g.fetches.Add(1)

	go g.run(f, loc)
	return f
}

func (g *Gate) run(f *flight, loc Location) {
	defer func() {
		g.mu.Lock()
		g.state = GateIdle
		g.inflight = nil
		g.mu.Unlock()
		close(f.done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	snap, err := g.fetcher.Fetch(ctx, loc)
	if err == nil && snap.IsEmpty() {
		err = ErrEmptySnapshot
	}
	if err != nil {
		g.logger.Warn("weather fetch failed; keeping last snapshot", "location", loc.Key(), "error", err)
		g.mu.Lock()
		f.snapshot = g.snapshot
		g.mu.Unlock()
		f.err = apperr.Wrap(apperr.CodeFetch, "fetch weather", err)
		return
	}

	g.mu.Lock()
	if g.closed {
		f.snapshot = g.snapshot
		g.mu.Unlock()
		g.logger.Info("discarding weather fetched after close", "location", loc.Key())
		f.err = apperr.Wrap(apperr.CodeFetch, "fetch weather", ErrGateClosed)
		return
	}
	g.snapshot = snap
	g.lastSuccess = g.now()
	g.mu.Unlock()

	f.snapshot = snap
	f.refreshed = true
	g.logger.Info("weather snapshot replaced", "location", loc.Key(), "parameters", len(snap.Parameters()))

	g.persist(snap)
}

func (g *Gate) persist(snap Snapshot) {
	if g.docs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	if err := g.docs.Save(ctx, SnapshotKey, snap); err != nil {
		g.logger.Error("persist weather snapshot failed", "error", err)
	}
}
