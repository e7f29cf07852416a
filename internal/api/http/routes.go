package httpapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agritrack/internal/reminder"
	"github.com/i474232898/agritrack/internal/schedule"
	"github.com/i474232898/agritrack/internal/settings"
	"github.com/i474232898/agritrack/internal/weather"
)

var validate = validator.New()

// Deps are the components the API reads and mutates.
type Deps struct {
	Gate     *weather.Gate
	Settings *settings.Service
	Rules    *reminder.Store
	Engine   *reminder.Engine
	Tracker  *schedule.Tracker
	Now      func() time.Time
}

type handler struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{Deps: deps}

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", h.currentWeather)
	v1.Post("/weather/refresh", h.refreshWeather)

	v1.Get("/settings", h.getSettings)
	v1.Put("/settings/location", h.setLocation)
	v1.Post("/settings/parameters/:parameter", h.toggleParameter)

	v1.Get("/reminders", h.listAllRules)
	v1.Get("/reminders/:parameter", h.listRules)
	v1.Post("/reminders/:parameter", h.upsertRule)
	v1.Delete("/reminders/:parameter/:index", h.removeRule)
	v1.Put("/rules/:id", h.updateRule)
	v1.Delete("/rules/:id", h.deleteRule)

	v1.Get("/alerts", h.listAlerts)
	v1.Post("/alerts/:id/ack", h.acknowledge)

	v1.Get("/actions", h.listActions)
	v1.Post("/actions/:kind/record", h.recordAction)
	v1.Put("/actions/:kind/interval", h.setInterval)

	v1.Get("/calendar", h.calendar)
	v1.Get("/calendar/:date", h.calendarDay)
}

func (h *handler) today() schedule.Date {
	return schedule.Today(h.Now)
}
