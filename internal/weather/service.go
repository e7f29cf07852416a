package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Aggregator is a Fetcher that queries every provider concurrently and
// merges the successful readings.
type Aggregator struct {
	providers []Provider
	now       func() time.Time
	logger    *slog.Logger
}

// NewAggregator creates a new Aggregator. A nil logger means slog.Default().
func NewAggregator(providers []Provider, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		providers: providers,
		now:       time.Now,
		logger:    logger.With("component", "aggregator"),
	}
}

// Fetch queries all providers for loc. Individual provider failures are
// logged and skipped; the fetch fails only when no provider succeeds.
func (a *Aggregator) Fetch(ctx context.Context, loc Location) (Snapshot, error) {
	if len(a.providers) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no weather providers configured", ErrNoReadings)
	}

	// One slot per provider keeps aggregation order stable.
	slots := make([]*ProviderReading, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		i, p := i, p
		g.Go(func() error {
			r, err := p.Fetch(ctx, loc)
			if err != nil {
				// Log and continue; partial success is still a snapshot.
				a.logger.Warn("provider fetch failed", "provider", p.Name(), "location", loc.Key(), "error", err)
				return nil
			}
			slots[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	readings := make([]ProviderReading, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			readings = append(readings, *r)
		}
	}

	if len(readings) == 0 {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrNoReadings, err)
		}
		return Snapshot{}, ErrNoReadings
	}

	a.logger.Debug("aggregated readings", "location", loc.Key(), "providers", len(readings))
	return AggregateReadings(a.now(), readings), nil
}
