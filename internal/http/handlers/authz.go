package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
)

// RequireUser verifies the bearer token and stores the caller in locals.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			applog.Security(c, "auth.missing", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token", "code": "unauthorized"})
		}
		actor, err := auth.Verify(strings.TrimSpace(tok))
		if err != nil && !errors.Is(err, services.ErrInvalidToken) {
			return fail(c, "auth.verify", err)
		}
		if err != nil {
			applog.Security(c, "auth.invalid", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "unauthorized"})
		}
		c.Locals("user_id", actor.ID)
		c.Locals("role", actor.Role)
		return c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actorOf(c).IsAdmin() {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin only", "code": "forbidden"})
		}
		return c.Next()
	}
}

func actorOf(c *fiber.Ctx) services.Actor {
	id, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	return services.Actor{ID: id, Role: role}
}
