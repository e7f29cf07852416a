package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/agritrack/internal/api/http"
	"github.com/i474232898/agritrack/internal/config"
	"github.com/i474232898/agritrack/internal/logger"
	"github.com/i474232898/agritrack/internal/reminder"
	"github.com/i474232898/agritrack/internal/schedule"
	"github.com/i474232898/agritrack/internal/scheduler"
	"github.com/i474232898/agritrack/internal/settings"
	"github.com/i474232898/agritrack/internal/store"
	"github.com/i474232898/agritrack/internal/weather"
	"github.com/i474232898/agritrack/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, closeDocs, err := openDocuments(cfg)
	if err != nil {
		log.Error("failed to open document store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeDocs()

	// Owned stores; a load error means the defaults could not be written back.
	set := settings.NewService(docs, cfg.DefaultLocation(), log)
	if err := set.Load(ctx); err != nil {
		log.Warn("settings loaded with errors", "error", err)
	}
	rules := reminder.NewStore(docs, log)
	if err := rules.Load(ctx); err != nil {
		log.Warn("reminders loaded with errors", "error", err)
	}
	tracker := schedule.NewTracker(docs, log)
	if err := tracker.Load(ctx); err != nil {
		log.Warn("action records loaded with errors", "error", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker).
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}
	// Open-Meteo needs no key, but resolving a district to coordinates needs the geocoder.
	var geo weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.GeocoderCountry)
	}
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient, geo))

	gate := weather.NewGate(weather.GateConfig{
		Fetcher:   weather.NewAggregator(provs, log),
		Documents: docs,
		Location:  set.Location,
		Cooldown:  cfg.FetchCooldown,
		Timeout:   cfg.FetchTimeout,
		Logger:    log,
	})
	if err := gate.Restore(ctx); err != nil {
		log.Warn("last weather snapshot not restored", "error", err)
	}
	defer gate.Close()

	engine := reminder.NewEngine(reminder.EngineConfig{
		Rules:  rules,
		Buffer: cfg.EventBuffer,
		Logger: log,
	})
	go reminder.Dispatch(ctx, engine.C(), reminder.LogNotifier{Logger: log}, log)

	// Driver that periodically refreshes the weather and evaluates reminders.
	driver := scheduler.New(gate, engine, scheduler.Config{
		Interval: cfg.PollInterval,
		Cron:     cfg.PollCron,
		Logger:   log,
	})
	if err := driver.Start(); err != nil {
		log.Error("failed to start driver", "error", err)
		os.Exit(1)
	}
	defer driver.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "agritrack",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.FetchTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agritrack",
			"gate":    gate.State().String(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Gate:     gate,
		Settings: set,
		Rules:    rules,
		Engine:   engine,
		Tracker:  tracker,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
			stop()
		}
	}()
	log.Info("agritrack started", "port", cfg.Port, "backend", cfg.StoreBackend, "providers", len(provs))

	<-ctx.Done()

	driver.Stop()
	engine.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

// openDocuments opens the configured document backend. The returned func
// releases it.
func openDocuments(cfg *config.AppConfig) (store.Documents, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil
	case config.BackendSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendValkey:
		client, err := store.DialValkey(cfg.ValkeyAddr)
		if err != nil {
			return nil, nil, err
		}
		return store.NewValkeyStore(client, cfg.ValkeyPrefix), client.Close, nil
	case config.BackendFile:
		s, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
