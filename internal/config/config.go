package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/i474232898/agritrack/internal/weather"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	// PollInterval is the driver cadence; PollCron overrides it when set.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"60s" validate:"gt=0"`
	PollCron     string        `envconfig:"POLL_CRON"`

	FetchCooldown time.Duration `envconfig:"FETCH_COOLDOWN" default:"60s" validate:"gt=0"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s" validate:"gt=0"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"8s" validate:"gt=0"`
	EventBuffer   int           `envconfig:"EVENT_BUFFER" default:"64" validate:"gt=0"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"file" validate:"oneof=file sqlite valkey memory"`
	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"data/agritrack.db"`
	ValkeyAddr   string `envconfig:"VALKEY_ADDR" default:"127.0.0.1:6379"`
	ValkeyPrefix string `envconfig:"VALKEY_PREFIX" default:"agritrack"`

	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`
	WeatherAPIKey     string `envconfig:"WEATHERAPI_API_KEY"`
	GeocoderAPIKey    string `envconfig:"GEOCODER_API_KEY"`
	GeocoderCountry   string `envconfig:"GEOCODER_COUNTRY" default:"Turkey"`

	DefaultRegion   string   `envconfig:"DEFAULT_REGION" default:"İstanbul" validate:"required"`
	DefaultDistrict string   `envconfig:"DEFAULT_DISTRICT" default:"Kadıköy" validate:"required"`
	Latitude        *float64 `envconfig:"LATITUDE" validate:"omitempty,latitude"`
	Longitude       *float64 `envconfig:"LONGITUDE" validate:"omitempty,longitude"`
}

// Load reads configuration from the environment, after an optional .env
// file, and validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the cron expression.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return fmt.Errorf("invalid configuration: LATITUDE and LONGITUDE must be set together")
	}
	if c.PollCron != "" {
		if _, err := cron.ParseStandard(c.PollCron); err != nil {
			return fmt.Errorf("invalid POLL_CRON %q: %w", c.PollCron, err)
		}
	}
	return nil
}

// DefaultLocation is the location used until the user sets one.
func (c *AppConfig) DefaultLocation() weather.Location {
	return weather.Location{
		Region:    c.DefaultRegion,
		District:  c.DefaultDistrict,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}
