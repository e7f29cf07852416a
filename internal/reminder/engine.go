package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/weather"
)

// DefaultBuffer is the capacity of the fired reminder channel.
const DefaultBuffer = 64

// Answer is the user's reply to a fired reminder.
type Answer string

const (
	AnswerYes    Answer = "yes"
	AnswerNo     Answer = "no"
	AnswerCancel Answer = "cancel"
)

// ParseAnswer accepts yes, no or cancel in any case.
func ParseAnswer(s string) (Answer, error) {
	switch a := Answer(strings.ToLower(strings.TrimSpace(s))); a {
	case AnswerYes, AnswerNo, AnswerCancel:
		return a, nil
	default:
		return "", apperr.New(apperr.CodeValidation, fmt.Sprintf("answer must be yes, no or cancel, got %q", s))
	}
}

// FiredReminder is one rule match waiting for acknowledgment.
type FiredReminder struct {
	ID          uuid.UUID         `json:"id"`
	Parameter   weather.Parameter `json:"parameter"`
	Rule        Rule              `json:"rule"`
	Value       weather.Value     `json:"value"`
	Message     string            `json:"message"`
	RequiresAck bool              `json:"requiresAck"`
	FiredAt     time.Time         `json:"firedAt"`
}

// Rules is the rule source the engine reads and deletes from.
type Rules interface {
	All() []ParameterRules
	Find(id uuid.UUID) (weather.Parameter, Rule, bool)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Rules  Rules
	Buffer int
	Logger *slog.Logger
	Now    func() time.Time
}

// Engine evaluates rules against snapshots. Fired reminders are published
// on C and stay pending until acknowledged; a rule with a pending fire is
// not fired again.
type Engine struct {
	rules  Rules
	logger *slog.Logger
	now    func() time.Time

	events  chan FiredReminder
	dropped atomic.Int64

	mu      sync.Mutex
	pending map[uuid.UUID]FiredReminder
	order   []uuid.UUID
	byRule  map[uuid.UUID]uuid.UUID
	closed  bool
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		rules:   cfg.Rules,
		logger:  cfg.Logger.With("component", "engine"),
		now:     cfg.Now,
		events:  make(chan FiredReminder, cfg.Buffer),
		pending: make(map[uuid.UUID]FiredReminder),
		byRule:  make(map[uuid.UUID]uuid.UUID),
	}
}

// C delivers fired reminders. It is closed by Close.
func (e *Engine) C() <-chan FiredReminder {
	return e.events
}

// Dropped is the number of fired reminders not delivered on C because the
// buffer was full. They are still pending.
func (e *Engine) Dropped() int64 {
	return e.dropped.Load()
}

// Evaluate runs one pass over all active rules against snap and returns
// the reminders fired by this pass. An empty snapshot fires nothing.
func (e *Engine) Evaluate(ctx context.Context, snap weather.Snapshot) []FiredReminder {
	if snap.IsEmpty() {
		return nil
	}
	now := e.now()

	var fired []FiredReminder
	for _, group := range e.rules.All() {
		if ctx.Err() != nil {
			break
		}
		value, ok := snap.Number(group.Parameter)
		if !ok {
			continue
		}
		for _, rule := range group.Rules {
			if !rule.Active || !rule.Recurrence.EligibleOn(now) {
				continue
			}
			if !rule.Comparison.Matches(value, rule.Threshold) {
				continue
			}
			shown, _ := snap.Value(group.Parameter)
			if fr, ok := e.fire(group.Parameter, rule, shown, now); ok {
				fired = append(fired, fr)
			}
		}
	}
	if len(fired) > 0 {
		e.logger.Info("evaluation fired reminders", "count", len(fired))
	}
	return fired
}

func (e *Engine) fire(p weather.Parameter, rule Rule, shown weather.Value, now time.Time) (FiredReminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return FiredReminder{}, false
	}
	if prev, waiting := e.byRule[rule.ID]; waiting {
		if e.pending[prev].Rule == rule {
			return FiredReminder{}, false
		}
		// The rule was edited since it fired; the old reminder is retired.
		e.retireLocked(prev)
	}

	fr := FiredReminder{
		ID:          uuid.New(),
		Parameter:   p,
		Rule:        rule,
		Value:       shown,
		Message:     fmt.Sprintf("%s is %s %s (current %s: %s)", p, rule.Comparison.phrase(), formatThreshold(rule.Threshold), p, shown),
		RequiresAck: true,
		FiredAt:     now,
	}
	e.pending[fr.ID] = fr
	e.order = append(e.order, fr.ID)
	e.byRule[rule.ID] = fr.ID

	select {
	case e.events <- fr:
	default:
		e.dropped.Add(1)
		e.logger.Warn("reminder channel full; reminder kept pending", "id", fr.ID, "parameter", p)
	}
	return fr, true
}

// Pending lists fired reminders not yet acknowledged, oldest first.
func (e *Engine) Pending() []FiredReminder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FiredReminder, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.pending[id])
	}
	return out
}

// Acknowledge applies the user's answer to a fired reminder. Yes deletes
// the rule. No and Cancel delete it only when it fires once. It reports
// whether the rule was deleted. A rule that is already gone is not an
// error.
func (e *Engine) Acknowledge(ctx context.Context, fireID uuid.UUID, answer Answer) (bool, error) {
	answer, err := ParseAnswer(string(answer))
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	fr, ok := e.pending[fireID]
	if ok {
		e.retireLocked(fireID)
	}
	e.mu.Unlock()

	if !ok {
		return false, apperr.New(apperr.CodeNotFound, "fired reminder "+fireID.String()+" not found")
	}

	// Decide on the rule as it is now; it may have been edited since it fired.
	_, current, exists := e.rules.Find(fr.Rule.ID)
	if !exists {
		return false, nil
	}
	remove := answer == AnswerYes || current.Recurrence == Once
	e.logger.Info("reminder acknowledged", "id", fireID, "answer", answer, "delete_rule", remove)
	if !remove {
		return false, nil
	}
	if err := e.rules.Delete(ctx, fr.Rule.ID); err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return false, nil
		}
		return apperr.IsCode(err, apperr.CodePersistence), err
	}
	return true, nil
}

func (e *Engine) retireLocked(fireID uuid.UUID) {
	fr := e.pending[fireID]
	delete(e.pending, fireID)
	if e.byRule[fr.Rule.ID] == fireID {
		delete(e.byRule, fr.Rule.ID)
	}
	for i, id := range e.order {
		if id == fireID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Close stops publishing and closes C. Pending reminders can still be
// acknowledged.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
