package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
	"github.com/i474232898/agritrack/internal/weather"
)

// Key is the document key the rules are persisted under.
const Key = "reminders"

// ParameterRules is the ordered rule list of one parameter.
type ParameterRules struct {
	Parameter weather.Parameter `json:"parameter"`
	Rules     []Rule            `json:"rules"`
}

// Store owns the reminder rules, grouped by parameter in insertion order.
// Every parameter always has a (possibly empty) list. Each mutation saves
// the whole document.
type Store struct {
	docs   store.Documents
	logger *slog.Logger

	mu    sync.RWMutex
	rules map[weather.Parameter][]Rule
}

func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		docs:   docs,
		logger: logger.With("component", "reminders"),
		rules:  emptyDocument(),
	}
}

func emptyDocument() map[weather.Parameter][]Rule {
	doc := make(map[weather.Parameter][]Rule, len(weather.Parameters))
	for _, p := range weather.Parameters {
		doc[p] = []Rule{}
	}
	return doc
}

// Load reads the rule document. Missing parameters get an empty list,
// unknown parameters and invalid rules are dropped, and rules without an
// id are given one. The document is saved back when it was repaired.
func (s *Store) Load(ctx context.Context) error {
	raw, err := store.LoadOrDefault(ctx, s.docs, Key, map[weather.Parameter][]Rule{})
	if err != nil {
		s.logger.Warn("reminder document not persisted", "error", err)
	}

	doc := emptyDocument()
	repaired := false
	for p, list := range raw {
		if !p.IsValid() {
			s.logger.Warn("dropping rules of unknown parameter", "parameter", p)
			repaired = true
			continue
		}
		for _, r := range list {
			r = r.Normalize()
			if verr := r.Validate(); verr != nil {
				s.logger.Warn("dropping invalid rule", "parameter", p, "error", verr)
				repaired = true
				continue
			}
			if r.ID == uuid.Nil {
				r.ID = uuid.New()
				repaired = true
			}
			doc[p] = append(doc[p], r)
		}
	}
	if len(raw) != len(weather.Parameters) {
		repaired = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = doc
	if repaired {
		if serr := s.saveLocked(ctx); serr != nil {
			return serr
		}
	}
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, "load reminders", err)
	}
	return nil
}

// List returns the rules of p in insertion order.
func (s *Store) List(p weather.Parameter) ([]Rule, error) {
	if err := checkParameter(p); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules[p]), nil
}

// All returns every parameter's rules in enumeration order.
func (s *Store) All() []ParameterRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ParameterRules, 0, len(weather.Parameters))
	for _, p := range weather.Parameters {
		out = append(out, ParameterRules{Parameter: p, Rules: slices.Clone(s.rules[p])})
	}
	return out
}

// Upsert replaces the rule at index when index is given and in range,
// keeping the existing id. Otherwise the rule is appended with a new id.
func (s *Store) Upsert(ctx context.Context, p weather.Parameter, index *int, rule Rule) (Rule, error) {
	if err := checkParameter(p); err != nil {
		return Rule{}, err
	}
	rule = rule.Normalize()
	if err := rule.Validate(); err != nil {
		return Rule{}, apperr.Wrap(apperr.CodeValidation, "invalid rule", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.rules[p]
	if index != nil && *index >= 0 && *index < len(list) {
		rule.ID = list[*index].ID
		list[*index] = rule
		s.logger.Info("rule updated", "parameter", p, "index", *index, "id", rule.ID)
	} else {
		rule.ID = uuid.New()
		s.rules[p] = append(list, rule)
		s.logger.Info("rule created", "parameter", p, "id", rule.ID)
	}
	return rule, s.saveLocked(ctx)
}

// Remove deletes the rule at index.
func (s *Store) Remove(ctx context.Context, p weather.Parameter, index int) error {
	if err := checkParameter(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.rules[p]
	if index < 0 || index >= len(list) {
		return apperr.New(apperr.CodeIndexRange, fmt.Sprintf("no %s rule at index %d", p, index))
	}
	s.rules[p] = slices.Delete(list, index, index+1)
	s.logger.Info("rule removed", "parameter", p, "index", index)
	return s.saveLocked(ctx)
}

// Find looks a rule up by id.
func (s *Store) Find(id uuid.UUID) (weather.Parameter, Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, i := s.locateLocked(id)
	if i < 0 {
		return "", Rule{}, false
	}
	return p, s.rules[p][i], true
}

// Update replaces the rule with the given id in place.
func (s *Store) Update(ctx context.Context, id uuid.UUID, rule Rule) (Rule, error) {
	rule = rule.Normalize()
	if err := rule.Validate(); err != nil {
		return Rule{}, apperr.Wrap(apperr.CodeValidation, "invalid rule", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, i := s.locateLocked(id)
	if i < 0 {
		return Rule{}, apperr.New(apperr.CodeNotFound, "rule "+id.String()+" not found")
	}
	rule.ID = id
	s.rules[p][i] = rule
	s.logger.Info("rule updated", "parameter", p, "id", id)
	return rule, s.saveLocked(ctx)
}

// Delete removes the rule with the given id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, i := s.locateLocked(id)
	if i < 0 {
		return apperr.New(apperr.CodeNotFound, "rule "+id.String()+" not found")
	}
	s.rules[p] = slices.Delete(s.rules[p], i, i+1)
	s.logger.Info("rule deleted", "parameter", p, "id", id)
	return s.saveLocked(ctx)
}

func (s *Store) locateLocked(id uuid.UUID) (weather.Parameter, int) {
	for _, p := range weather.Parameters {
		for i, r := range s.rules[p] {
			if r.ID == id {
				return p, i
			}
		}
	}
	return "", -1
}

// saveLocked writes the whole document. The in-memory change stays applied
// when the write fails.
func (s *Store) saveLocked(ctx context.Context) error {
	if err := s.docs.Save(ctx, Key, s.rules); err != nil {
		s.logger.Error("save reminders failed", "error", err)
		return apperr.Wrap(apperr.CodePersistence, "save reminders", err)
	}
	return nil
}

func checkParameter(p weather.Parameter) error {
	if !p.IsValid() {
		return apperr.Wrap(apperr.CodeValidation, "unknown parameter", fmt.Errorf("%w: %q", weather.ErrUnknownParameter, p))
	}
	return nil
}
