package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agritrack/internal/apperr"
)

// ErrorHandler renders errors as JSON, mapping application error codes to
// HTTP statuses.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else if appCode, ok := apperr.CodeOf(err); ok {
		code = statusOf(appCode)
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return fiber.StatusBadRequest
	case apperr.CodeIndexRange:
		return fiber.StatusConflict
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeFetch:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// reply sends body with status. A persistence failure still answers with
// status: the change is applied in memory, so the failure is reported as a
// warning. Any other error is returned to the error handler.
func reply(c *fiber.Ctx, status int, body fiber.Map, err error) error {
	if err != nil {
		if !apperr.IsCode(err, apperr.CodePersistence) {
			return err
		}
		body["warning"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
