package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
)

// DayEvent tells what happened or is due for an action on a given day.
type DayEvent struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
	Event string     `json:"event"`
}

const (
	EventPerformed = "performed"
	EventDue       = "due"
)

// Tracker owns the fertilizing and pesticide records. Each record is its
// own document keyed by the action kind.
type Tracker struct {
	docs   store.Documents
	logger *slog.Logger

	mu      sync.RWMutex
	records map[ActionKind]ActionRecord
}

func NewTracker(docs store.Documents, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	records := make(map[ActionKind]ActionRecord, len(ActionKinds))
	for _, k := range ActionKinds {
		records[k] = DefaultRecord(k)
	}
	return &Tracker{
		docs:    docs,
		logger:  logger.With("component", "tracker"),
		records: records,
	}
}

// Load reads both records. A missing or corrupt document falls back to
// the default, which is written back.
func (t *Tracker) Load(ctx context.Context) error {
	loaded := make(map[ActionKind]ActionRecord, len(ActionKinds))
	var firstErr error
	for _, k := range ActionKinds {
		rec, err := store.LoadOrDefault(ctx, t.docs, string(k), DefaultRecord(k))
		if err != nil {
			t.logger.Warn("action record not persisted", "action", k, "error", err)
			if firstErr == nil {
				firstErr = apperr.Wrap(apperr.CodePersistence, "load "+string(k), err)
			}
		}
		loaded[k] = rec
	}

	t.mu.Lock()
	t.records = loaded
	t.mu.Unlock()
	return firstErr
}

// Get returns the record of kind.
func (t *Tracker) Get(kind ActionKind) (ActionRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[kind]
	if !ok {
		return ActionRecord{}, apperr.Wrap(apperr.CodeValidation, "get action", fmt.Errorf("%w: %q", ErrUnknownAction, kind))
	}
	return rec, nil
}

// Record marks kind as performed on today.
func (t *Tracker) Record(ctx context.Context, kind ActionKind, today Date) (ActionRecord, error) {
	return t.update(ctx, kind, func(rec *ActionRecord) {
		d := today
		rec.LastPerformedDate = &d
	})
}

// SetInterval changes the repeat interval of kind.
func (t *Tracker) SetInterval(ctx context.Context, kind ActionKind, days int) (ActionRecord, error) {
	if days < 0 {
		return ActionRecord{}, apperr.New(apperr.CodeValidation, fmt.Sprintf("interval must not be negative, got %d", days))
	}
	return t.update(ctx, kind, func(rec *ActionRecord) {
		rec.IntervalDays = days
	})
}

// Remaining returns the days left until kind is next due. It reports false
// when nothing is projected.
func (t *Tracker) Remaining(kind ActionKind, today Date) (int, bool) {
	rec, err := t.Get(kind)
	if err != nil {
		return 0, false
	}
	next, ok := rec.Next()
	if !ok {
		return 0, false
	}
	return RemainingDays(next, today), true
}

// MarkCalendar replaces all marks with the last and next day of each action.
func (t *Tracker) MarkCalendar(m CalendarMarker) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m.ClearAll()
	for _, k := range ActionKinds {
		rec := t.records[k]
		if rec.LastPerformedDate != nil {
			m.Mark(*rec.LastPerformedDate, k.Label()+" performed", string(k)+"_past")
		}
		if next, ok := rec.Next(); ok {
			m.Mark(next, k.Label()+" due", string(k)+"_next")
		}
	}
}

// DayInfo lists the actions performed or next due on date.
func (t *Tracker) DayInfo(date Date) []DayEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var events []DayEvent
	for _, k := range ActionKinds {
		rec := t.records[k]
		if rec.LastPerformedDate != nil && rec.LastPerformedDate.Equal(date) {
			events = append(events, DayEvent{Kind: k, Label: k.Label(), Event: EventPerformed})
		}
		if next, ok := rec.Next(); ok && next.Equal(date) {
			events = append(events, DayEvent{Kind: k, Label: k.Label(), Event: EventDue})
		}
	}
	return events
}

// update applies fn in memory and then saves the document under the same
// lock, so saves land in mutation order. A save error is returned as a
// persistence failure; the change is kept either way.
func (t *Tracker) update(ctx context.Context, kind ActionKind, fn func(*ActionRecord)) (ActionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[kind]
	if !ok {
		return ActionRecord{}, apperr.Wrap(apperr.CodeValidation, "update action", fmt.Errorf("%w: %q", ErrUnknownAction, kind))
	}
	fn(&rec)
	t.records[kind] = rec

	if err := t.docs.Save(ctx, string(kind), rec); err != nil {
		t.logger.Error("save action record failed", "action", kind, "error", err)
		return rec, apperr.Wrap(apperr.CodePersistence, "save "+string(kind), err)
	}
	t.logger.Info("action record updated", "action", kind, "interval_days", rec.IntervalDays)
	return rec, nil
}
