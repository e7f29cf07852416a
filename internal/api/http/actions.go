package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agritrack/internal/schedule"
)

type actionView struct {
	Kind              schedule.ActionKind `json:"kind"`
	Label             string              `json:"label"`
	LastPerformedDate *schedule.Date      `json:"lastPerformedDate"`
	IntervalDays      int                 `json:"intervalDays"`
	NextDate          *schedule.Date      `json:"nextDate"`
	RemainingDays     *int                `json:"remainingDays"`
}

func (h *handler) viewAction(kind schedule.ActionKind, rec schedule.ActionRecord) actionView {
	v := actionView{
		Kind:              kind,
		Label:             kind.Label(),
		LastPerformedDate: rec.LastPerformedDate,
		IntervalDays:      rec.IntervalDays,
	}
	if next, ok := rec.Next(); ok {
		days := schedule.RemainingDays(next, h.today())
		v.NextDate = &next
		v.RemainingDays = &days
	}
	return v
}

func kindParam(c *fiber.Ctx) (schedule.ActionKind, error) {
	kind, err := schedule.ParseActionKind(c.Params("kind"))
	if err != nil {
		return "", badRequest(err)
	}
	return kind, nil
}

func (h *handler) listActions(c *fiber.Ctx) error {
	views := make([]actionView, 0, len(schedule.ActionKinds))
	for _, kind := range schedule.ActionKinds {
		rec, err := h.Tracker.Get(kind)
		if err != nil {
			return err
		}
		views = append(views, h.viewAction(kind, rec))
	}
	return c.JSON(fiber.Map{"actions": views})
}

// recordAction marks the action as performed today.
func (h *handler) recordAction(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	rec, err := h.Tracker.Record(c.UserContext(), kind, h.today())
	return reply(c, fiber.StatusOK, fiber.Map{"action": h.viewAction(kind, rec)}, err)
}

type intervalRequest struct {
	IntervalDays *int `json:"intervalDays" validate:"required"`
}

func (h *handler) setInterval(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	var req intervalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(err)
	}

	rec, err := h.Tracker.SetInterval(c.UserContext(), kind, *req.IntervalDays)
	return reply(c, fiber.StatusOK, fiber.Map{"action": h.viewAction(kind, rec)}, err)
}

func (h *handler) calendar(c *fiber.Ctx) error {
	cal := schedule.NewCalendar()
	h.Tracker.MarkCalendar(cal)
	return c.JSON(fiber.Map{"marks": cal.Marks()})
}

func (h *handler) calendarDay(c *fiber.Ctx) error {
	date, err := schedule.ParseDate(c.Params("date"))
	if err != nil {
		return badRequest(err)
	}
	events := h.Tracker.DayInfo(date)
	if events == nil {
		events = []schedule.DayEvent{}
	}
	return c.JSON(fiber.Map{"date": date, "events": events})
}
