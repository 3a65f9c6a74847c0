package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		return badRequest(c, "email")
	}
	if !validate.Password(req.Password) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "password policy"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": services.ErrBadCreds.Error(), "code": "unauthorized"})
	}

	tok, u, err := h.Auth.Login(email, req.Password)
	if errors.Is(err, services.ErrBadCreds) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "unauthorized"})
	}
	if err != nil {
		return fail(c, "auth.login", err)
	}
	c.Locals("user_id", u.ID)
	applog.Audit(c, "auth.login.success", nil)
	return c.JSON(fiber.Map{"token": tok, "user_id": u.ID, "role": u.Role})
}
