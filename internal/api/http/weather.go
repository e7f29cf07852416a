package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agritrack/internal/weather"
)

// currentWeather returns the cached snapshot. It may start a background
// refresh but never waits for one.
func (h *handler) currentWeather(c *fiber.Ctx) error {
	snap := h.Gate.Snapshot()
	selected := h.Settings.Selected()

	display := make([]fiber.Map, 0, len(selected))
	for _, p := range selected {
		if v, ok := snap.Value(p); ok {
			display = append(display, fiber.Map{"parameter": p, "value": v.String()})
		}
	}

	return c.JSON(fiber.Map{
		"location":           h.Settings.Location(),
		"state":              h.Gate.State().String(),
		"snapshot":           snap,
		"selectedParameters": selected,
		"display":            display,
	})
}

// refreshWeather waits for a fetch unless one succeeded within the
// cooldown. A failed fetch answers 502 with the stale snapshot.
func (h *handler) refreshWeather(c *fiber.Ctx) error {
	res := h.Gate.Await(c.UserContext())
	body := fiber.Map{
		"snapshot":  res.Snapshot,
		"refreshed": res.Refreshed,
	}
	if res.Err != nil {
		body["error"] = true
		body["message"] = res.Err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(body)
	}
	return c.JSON(body)
}

func (h *handler) getSettings(c *fiber.Ctx) error {
	return c.JSON(h.Settings.Get())
}

type locationRequest struct {
	Region    string   `json:"region" validate:"required"`
	District  string   `json:"district" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// setLocation stores the location and refreshes the weather for it.
func (h *handler) setLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(err)
	}

	loc, err := h.Settings.SetLocation(c.UserContext(), weather.Location{
		Region:    req.Region,
		District:  req.District,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if loc.District != "" {
		h.Gate.Invalidate()
		h.Gate.Snapshot()
	}
	return reply(c, fiber.StatusOK, fiber.Map{"location": loc}, err)
}

func (h *handler) toggleParameter(c *fiber.Ctx) error {
	p, err := weather.ParseParameter(c.Params("parameter"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	selected, err := h.Settings.Toggle(c.UserContext(), p)
	return reply(c, fiber.StatusOK, fiber.Map{
		"parameter":          p,
		"selected":           selected,
		"selectedParameters": h.Settings.Selected(),
	}, err)
}
