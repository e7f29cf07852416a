package settings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/agritrack/internal/apperr"
	"github.com/i474232898/agritrack/internal/store"
	"github.com/i474232898/agritrack/internal/weather"
)

// Key is the document key settings are persisted under.
const Key = "settings"

// Settings is the user's display and location preferences.
type Settings struct {
	SelectedParameters []weather.Parameter `json:"selectedParameters"`
	Location           weather.Location    `json:"location"`
}

func (s Settings) clone() Settings {
	out := s
	out.SelectedParameters = slices.Clone(s.SelectedParameters)
	return out
}

// Service owns the settings document.
type Service struct {
	docs     store.Documents
	validate *validator.Validate
	logger   *slog.Logger
	fallback weather.Location

	mu      sync.RWMutex
	current Settings
}

// NewService creates a service whose default location is fallback.
func NewService(docs store.Documents, fallback weather.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:     docs,
		validate: validator.New(),
		logger:   logger.With("component", "settings"),
		fallback: fallback,
		current:  Settings{SelectedParameters: []weather.Parameter{}, Location: fallback},
	}
}

// Load reads the settings document, replacing a missing or corrupt one
// with the defaults. Unknown parameters in the document are dropped.
func (s *Service) Load(ctx context.Context) error {
	def := Settings{SelectedParameters: []weather.Parameter{}, Location: s.fallback}
	loaded, err := store.LoadOrDefault(ctx, s.docs, Key, def)
	if err != nil {
		s.logger.Warn("settings not persisted", "error", err)
		err = apperr.Wrap(apperr.CodePersistence, "load settings", err)
	}

	loaded.SelectedParameters = slices.DeleteFunc(loaded.SelectedParameters, func(p weather.Parameter) bool {
		return !p.IsValid()
	})
	if loaded.SelectedParameters == nil {
		loaded.SelectedParameters = []weather.Parameter{}
	}
	if s.validate.Struct(loaded.Location) != nil {
		loaded.Location = s.fallback
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return err
}

// Get returns a copy of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Location returns the configured location.
func (s *Service) Location() weather.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Location
}

// Selected returns the parameters chosen for display, in enumeration order.
func (s *Service) Selected() []weather.Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]weather.Parameter, 0, len(s.current.SelectedParameters))
	for _, p := range weather.Parameters {
		if slices.Contains(s.current.SelectedParameters, p) {
			out = append(out, p)
		}
	}
	return out
}

// Toggle adds p to the selection, or removes it when already selected.
// It reports whether p is selected afterwards.
func (s *Service) Toggle(ctx context.Context, p weather.Parameter) (bool, error) {
	if !p.IsValid() {
		return false, apperr.Wrap(apperr.CodeValidation, "toggle parameter", fmt.Errorf("%w: %q", weather.ErrUnknownParameter, p))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := !slices.Contains(s.current.SelectedParameters, p)
	if selected {
		s.current.SelectedParameters = append(s.current.SelectedParameters, p)
	} else {
		s.current.SelectedParameters = slices.DeleteFunc(s.current.SelectedParameters, func(q weather.Parameter) bool { return q == p })
	}
	return selected, s.saveLocked(ctx)
}

// SetLocation replaces the location. Region and district are both required.
func (s *Service) SetLocation(ctx context.Context, loc weather.Location) (weather.Location, error) {
	loc.Region = strings.TrimSpace(loc.Region)
	loc.District = strings.TrimSpace(loc.District)
	if err := s.validate.Struct(loc); err != nil {
		return weather.Location{}, apperr.Wrap(apperr.CodeValidation, "region and district are both required", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Location = loc
	s.logger.Info("location changed", "location", loc.Key())
	return loc, s.saveLocked(ctx)
}

// saveLocked writes the current settings; callers hold mu so saves land in
// mutation order.
func (s *Service) saveLocked(ctx context.Context) error {
	if err := s.docs.Save(ctx, Key, s.current); err != nil {
		s.logger.Error("save settings failed", "error", err)
		return apperr.Wrap(apperr.CodePersistence, "save settings", err)
	}
	return nil
}
