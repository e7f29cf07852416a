package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownParameter is returned for names outside the parameter enumeration.
	ErrUnknownParameter = errors.New("weather: unknown parameter")
	// ErrNoReadings is returned when no provider produced a reading.
	ErrNoReadings = errors.New("weather: no provider readings")
	// ErrEmptySnapshot is returned when a fetch yields a snapshot without values.
	ErrEmptySnapshot = errors.New("weather: empty snapshot")
)

// ProviderReading represents a single provider's normalized reading
// that can be aggregated into a Snapshot. Measurements only carries the
// numeric parameters the provider actually reported.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	Measurements map[Parameter]float64
	Condition    Condition
	Sunrise      string // "HH:MM" local time, empty if unknown
	Sunset       string
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// Fetcher produces a complete snapshot for a location or fails.
// Implementations must honour ctx so a fetch never hangs indefinitely.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) (Snapshot, error)
}

// Geocoder resolves a location to coordinates for providers that need them.
type Geocoder interface {
	Geocode(ctx context.Context, loc Location) (lat, lon float64, err error)
}
