package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedFetcher returns queued results in order, optionally blocking
// each call until release is closed.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
	release chan struct{}
}

type fetchResult struct {
	temp float64
	err  error
}

func (f *scriptedFetcher) Fetch(ctx context.Context, _ Location) (Snapshot, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return Snapshot{}, errors.New("no scripted result")
	}
	r := f.results[0]
	f.results = f.results[1:]
	if r.err != nil {
		return Snapshot{}, r.err
	}
	return NewSnapshot(time.Now(), map[Parameter]Value{
		ParamTemperature: NumberValue(ParamTemperature, r.temp),
	}), nil
}

func newTestGate(t *testing.T, fetcher Fetcher, docs store.Documents) (*Gate, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)}
	g := NewGate(GateConfig{
		Fetcher:   fetcher,
		Documents: docs,
		Location:  func() Location { return Location{Region: "İstanbul", District: "Kadıköy"} },
		Cooldown:  time.Minute,
		Timeout:   time.Second,
		Now:       clock.Now,
	})
	return g, clock
}

func temperature(t *testing.T, snap Snapshot) float64 {
	t.Helper()
	v, ok := snap.Number(ParamTemperature)
	require.True(t, ok, "snapshot has no temperature")
	return v
}

func TestGateConcurrentRequestsShareOneFetch(t *testing.T) {
	fetcher := &scriptedFetcher{
		results: []fetchResult{{temp: 5}},
		release: make(chan struct{}),
	}
	g, _ := newTestGate(t, fetcher, nil)

	const callers = 32
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				g.Snapshot()
			}
			results[i] = g.Await(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return g.State() == GateFetching }, time.Second, time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int64(1), g.Fetches())
	assert.Equal(t, GateIdle, g.State())
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, 5.0, temperature(t, r.Snapshot))
	}
}

func TestGateCooldownAfterSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{temp: 5}, {temp: 8}}}
	g, clock := newTestGate(t, fetcher, nil)

	r := g.Await(context.Background())
	require.NoError(t, r.Err)
	assert.True(t, r.Refreshed)

	clock.Advance(30 * time.Second)
	r = g.Await(context.Background())
	require.NoError(t, r.Err)
	assert.False(t, r.Refreshed)
	assert.Equal(t, 5.0, temperature(t, r.Snapshot))
	assert.Equal(t, int32(1), fetcher.calls.Load())

	clock.Advance(31 * time.Second)
	r = g.Await(context.Background())
	require.NoError(t, r.Err)
	assert.True(t, r.Refreshed)
	assert.Equal(t, 8.0, temperature(t, r.Snapshot))
}

func TestGateFailureKeepsStaleSnapshotAndAllowsRetry(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{temp: 5},
		{err: context.DeadlineExceeded},
		{err: context.DeadlineExceeded},
		{temp: 9},
	}}
	g, clock := newTestGate(t, fetcher, nil)

	require.NoError(t, g.Await(context.Background()).Err)
	clock.Advance(time.Minute)

	for i := 0; i < 2; i++ {
		r := g.Await(context.Background())
		require.Error(t, r.Err)
		assert.True(t, apperr.IsCode(r.Err, apperr.CodeFetch))
		assert.False(t, r.Refreshed)
		assert.Equal(t, 5.0, temperature(t, r.Snapshot))
		assert.Equal(t, 5.0, temperature(t, g.Snapshot()))
	}

	// No cooldown after failures: the next request fetches again immediately.
	r := g.Await(context.Background())
	require.NoError(t, r.Err)
	assert.Equal(t, 9.0, temperature(t, r.Snapshot))
	assert.Equal(t, int32(4), fetcher.calls.Load())
}

func TestGateFetchTimeoutIsFailure(t *testing.T) {
	fetcher := &scriptedFetcher{release: make(chan struct{})}
	clock := &fakeClock{now: time.Now()}
	g := NewGate(GateConfig{Fetcher: fetcher, Timeout: 20 * time.Millisecond, Now: clock.Now})

	r := g.Await(context.Background())
	require.Error(t, r.Err)
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	assert.True(t, r.Snapshot.IsEmpty())
	assert.Equal(t, GateIdle, g.State())
}

func TestGateEmptySnapshotIsFailure(t *testing.T) {
	g := NewGate(GateConfig{Fetcher: emptyFetcher{}})
	r := g.Await(context.Background())
	assert.ErrorIs(t, r.Err, ErrEmptySnapshot)
}

type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, Location) (Snapshot, error) {
	return NewSnapshot(time.Now(), nil), nil
}

func TestGatePersistsAndRestores(t *testing.T) {
	docs := store.NewMemoryStore()
	g, _ := newTestGate(t, &scriptedFetcher{results: []fetchResult{{temp: 7}}}, docs)
	require.NoError(t, g.Await(context.Background()).Err)

	restored, _ := newTestGate(t, &scriptedFetcher{}, docs)
	require.NoError(t, restored.Restore(context.Background()))
	assert.Equal(t, 7.0, temperature(t, restored.Current()))
	assert.Equal(t, int64(0), restored.Fetches())
}

func TestGateCloseDiscardsLateResult(t *testing.T) {
	fetcher := &scriptedFetcher{
		results: []fetchResult{{temp: 7}},
		release: make(chan struct{}),
	}
	g, _ := newTestGate(t, fetcher, nil)

	done := make(chan Result, 1)
	go func() { done <- g.Await(context.Background()) }()
	require.Eventually(t, func() bool { return g.State() == GateFetching }, time.Second, time.Millisecond)

	g.Close()
	close(fetcher.release)

	r := <-done
	assert.ErrorIs(t, r.Err, ErrGateClosed)
	assert.True(t, g.Current().IsEmpty())

	assert.False(t, g.Await(context.Background()).Refreshed)
	assert.Equal(t, int64(1), g.Fetches())
}

func TestGateInvalidateEndsCooldown(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{temp: 1}, {temp: 2}}}
	g, _ := newTestGate(t, fetcher, nil)

	require.NoError(t, g.Await(context.Background()).Err)
	g.Invalidate()
	r := g.Await(context.Background())
	require.NoError(t, r.Err)
	assert.Equal(t, 2.0, temperature(t, r.Snapshot))
}

func TestGateAwaitHonoursCallerContext(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{temp: 1}}, release: make(chan struct{})}
	g, _ := newTestGate(t, fetcher, nil)
	defer close(fetcher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r := g.Await(ctx)
	assert.True(t, apperr.IsCode(r.Err, apperr.CodeFetch))
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
}
