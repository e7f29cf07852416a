package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/agritrack/internal/reminder"
	"github.com/i474232898/agritrack/internal/weather"
)

// ruleRequest is the body for creating or changing a rule. Recurrence
// defaults to once and Active to true.
type ruleRequest struct {
	Index      *int     `json:"index"`
	Comparison string   `json:"comparison" validate:"required"`
	Threshold  *float64 `json:"threshold" validate:"required"`
	Active     *bool    `json:"active"`
	Recurrence string   `json:"recurrence"`
}

func (r ruleRequest) toRule() reminder.Rule {
	rule := reminder.Rule{
		Comparison: reminder.Comparison(r.Comparison),
		Threshold:  *r.Threshold,
		Active:     true,
		Recurrence: reminder.Once,
	}
	if r.Active != nil {
		rule.Active = *r.Active
	}
	if r.Recurrence != "" {
		rule.Recurrence = reminder.Recurrence(r.Recurrence)
	}
	return rule
}

func parseRuleRequest(c *fiber.Ctx) (ruleRequest, error) {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return req, badRequest(err)
	}
	if err := validate.Struct(req); err != nil {
		return req, badRequest(err)
	}
	return req, nil
}

func parameterParam(c *fiber.Ctx) (weather.Parameter, error) {
	p, err := weather.ParseParameter(c.Params("parameter"))
	if err != nil {
		return "", badRequest(err)
	}
	return p, nil
}

func idParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *handler) listAllRules(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"reminders": h.Rules.All()})
}

func (h *handler) listRules(c *fiber.Ctx) error {
	p, err := parameterParam(c)
	if err != nil {
		return err
	}
	rules, err := h.Rules.List(p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"parameter": p, "rules": rules})
}

func (h *handler) upsertRule(c *fiber.Ctx) error {
	p, err := parameterParam(c)
	if err != nil {
		return err
	}
	req, err := parseRuleRequest(c)
	if err != nil {
		return err
	}

	rule, err := h.Rules.Upsert(c.UserContext(), p, req.Index, req.toRule())
	if rule.ID == uuid.Nil {
		return err
	}
	return reply(c, fiber.StatusOK, fiber.Map{"parameter": p, "rule": rule}, err)
}

func (h *handler) removeRule(c *fiber.Ctx) error {
	p, err := parameterParam(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
	}

	err = h.Rules.Remove(c.UserContext(), p, index)
	return reply(c, fiber.StatusOK, fiber.Map{"parameter": p, "removed": index}, err)
}

func (h *handler) updateRule(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	req, err := parseRuleRequest(c)
	if err != nil {
		return err
	}

	rule, err := h.Rules.Update(c.UserContext(), id, req.toRule())
	if rule.ID == uuid.Nil {
		return err
	}
	return reply(c, fiber.StatusOK, fiber.Map{"rule": rule}, err)
}

func (h *handler) deleteRule(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	err = h.Rules.Delete(c.UserContext(), id)
	return reply(c, fiber.StatusOK, fiber.Map{"deleted": id}, err)
}

func (h *handler) listAlerts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"alerts": h.Engine.Pending()})
}

type ackRequest struct {
	Answer string `json:"answer" validate:"required"`
}

func (h *handler) acknowledge(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req ackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(err)
	}
	answer, err := reminder.ParseAnswer(req.Answer)
	if err != nil {
		return err
	}

	deleted, err := h.Engine.Acknowledge(c.UserContext(), id, answer)
	return reply(c, fiber.StatusOK, fiber.Map{"id": id, "answer": answer, "ruleDeleted": deleted}, err)
}
