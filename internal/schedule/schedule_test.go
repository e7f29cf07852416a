package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNextDate(t *testing.T) {
	last := mustDate(t, "2024-01-01")

	next, ok := NextDate(&last, 30)
	require.True(t, ok)
	assert.Equal(t, "2024-01-31", next.String())

	next, ok = NextDate(&last, 0)
	require.True(t, ok)
	assert.True(t, next.Equal(last))

	_, ok = NextDate(nil, 30)
	assert.False(t, ok)

	_, ok = NextDate(&last, -1)
	assert.False(t, ok)
}

func TestNextDateCrossesMonthAndLeapDay(t *testing.T) {
	last := mustDate(t, "2024-02-20")
	next, ok := NextDate(&last, 15)
	require.True(t, ok)
	assert.Equal(t, "2024-03-06", next.String())
}

func TestRemainingDays(t *testing.T) {
	last := mustDate(t, "2024-01-01")
	next, _ := NextDate(&last, 30)

	assert.Equal(t, 11, RemainingDays(next, mustDate(t, "2024-01-20")))
	assert.Equal(t, 0, RemainingDays(next, mustDate(t, "2024-01-31")))
	assert.Equal(t, 0, RemainingDays(next, mustDate(t, "2024-02-15")))
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, 1, 20, 23, 59, 0, 0, time.Local)
	assert.Equal(t, "2024-01-20", DateOf(late).String())
}

func TestActionRecordJSON(t *testing.T) {
	d := mustDate(t, "2024-01-01")
	raw, err := json.Marshal(ActionRecord{LastPerformedDate: &d, IntervalDays: 30})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lastPerformedDate":"2024-01-01","intervalDays":30}`, string(raw))

	raw, err = json.Marshal(DefaultRecord(Pesticide))
	require.NoError(t, err)
	assert.JSONEq(t, `{"lastPerformedDate":null,"intervalDays":15}`, string(raw))

	var rec ActionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"lastPerformedDate":"2024-01-01"}`), &rec))
	_, ok := rec.Next()
	assert.False(t, ok, "missing interval projects nothing")

	assert.Error(t, json.Unmarshal([]byte(`{"lastPerformedDate":"01/01/2024","intervalDays":3}`), &rec))
}

func TestParseActionKind(t *testing.T) {
	k, err := ParseActionKind("Fertilizing")
	require.NoError(t, err)
	assert.Equal(t, Fertilizing, k)

	_, err = ParseActionKind("watering")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestTrackerLoadWritesDefaults(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemoryStore()
	tr := NewTracker(docs, nil)

	require.NoError(t, tr.Load(ctx))

	var saved ActionRecord
	require.NoError(t, docs.Load(ctx, string(Fertilizing), &saved))
	assert.Equal(t, 30, saved.IntervalDays)
	require.NoError(t, docs.Load(ctx, string(Pesticide), &saved))
	assert.Equal(t, 15, saved.IntervalDays)
}

func TestTrackerRecordAndRemaining(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemoryStore()
	tr := NewTracker(docs, nil)
	require.NoError(t, tr.Load(ctx))

	_, ok := tr.Remaining(Fertilizing, mustDate(t, "2024-01-20"))
	assert.False(t, ok)

	_, err := tr.Record(ctx, Fertilizing, mustDate(t, "2024-01-01"))
	require.NoError(t, err)

	days, ok := tr.Remaining(Fertilizing, mustDate(t, "2024-01-20"))
	require.True(t, ok)
	assert.Equal(t, 11, days)

	reloaded := NewTracker(docs, nil)
	require.NoError(t, reloaded.Load(ctx))
	rec, err := reloaded.Get(Fertilizing)
	require.NoError(t, err)
	require.NotNil(t, rec.LastPerformedDate)
	assert.Equal(t, "2024-01-01", rec.LastPerformedDate.String())
}

func TestTrackerSetInterval(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(store.NewMemoryStore(), nil)

	_, err := tr.SetInterval(ctx, Pesticide, -3)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	rec, err := tr.SetInterval(ctx, Pesticide, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.IntervalDays)

	_, err = tr.SetInterval(ctx, ActionKind("watering"), 7)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

type failingDocs struct{ store.Documents }

func (failingDocs) Save(context.Context, string, any) error { return errors.New("disk full") }

func TestTrackerKeepsChangeWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(failingDocs{store.NewMemoryStore()}, nil)

	_, err := tr.Record(ctx, Pesticide, mustDate(t, "2024-03-01"))
	assert.True(t, apperr.IsCode(err, apperr.CodePersistence))

	rec, err := tr.Get(Pesticide)
	require.NoError(t, err)
	require.NotNil(t, rec.LastPerformedDate)
	assert.Equal(t, "2024-03-01", rec.LastPerformedDate.String())
}

func TestTrackerMarkCalendarAndDayInfo(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(store.NewMemoryStore(), nil)
	_, err := tr.Record(ctx, Fertilizing, mustDate(t, "2024-01-01"))
	require.NoError(t, err)
	_, err = tr.Record(ctx, Pesticide, mustDate(t, "2024-01-16"))
	require.NoError(t, err)

	cal := NewCalendar()
	cal.Mark(mustDate(t, "1999-01-01"), "stale", "stale")
	tr.MarkCalendar(cal)

	marks := cal.Marks()
	require.Len(t, marks, 4)
	assert.Equal(t, "fertilizing_past", marks[0].Tag)
	assert.Equal(t, "2024-01-16", marks[1].Date.String())
	assert.Equal(t, "pesticide_past", marks[1].Tag)
	assert.Equal(t, "2024-01-31", marks[2].Date.String())
	assert.Equal(t, "fertilizing_next", marks[2].Tag)
	assert.Equal(t, "pesticide_next", marks[3].Tag)

	events := tr.DayInfo(mustDate(t, "2024-01-31"))
	require.Len(t, events, 2)
	assert.Equal(t, DayEvent{Kind: Fertilizing, Label: "Fertilizing", Event: EventDue}, events[0])
	assert.Equal(t, Pesticide, events[1].Kind)

	assert.Empty(t, tr.DayInfo(mustDate(t, "2024-01-02")))
}

func TestTrackerConcurrentUpdatesPersistFinalState(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemoryStore()
	tr := NewTracker(docs, nil)

	var wg sync.WaitGroup
	for days := 1; days <= 50; days++ {
		wg.Add(1)
		go func(days int) {
			defer wg.Done()
			_, _ = tr.SetInterval(ctx, Fertilizing, days)
		}(days)
	}
	wg.Wait()

	want, err := tr.Get(Fertilizing)
	require.NoError(t, err)

	var saved ActionRecord
	require.NoError(t, docs.Load(ctx, string(Fertilizing), &saved))
	assert.Equal(t, want.IntervalDays, saved.IntervalDays)
}
