package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
)

// fail maps a service error onto a JSON error response. Unknown errors are
// logged and hidden behind a generic message.
func fail(c *fiber.Ctx, action string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalid):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		applog.Error(c, action+".fail", err, nil)
		return c.Status(status).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
	}

	body := fiber.Map{"error": err.Error()}
	var se *services.Error
	if errors.As(err, &se) {
		body["code"] = se.Code
		for k, v := range se.Fields {
			body[k] = v
		}
	}
	if status == fiber.StatusForbidden {
		applog.Security(c, action+".denied", map[string]any{"reason": err.Error()})
	} else {
		applog.Info(c, action+".rejected", map[string]any{"reason": err.Error()})
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, field string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + field, "code": "invalid"})
}
