package handlers_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/http/handlers"
)

// friendly error surface, no internal leakage
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())

	// Routes that trigger internal errors
	app.Get("/err", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "db timeout: secret trace")
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("sqlite: disk I/O error at /var/secret.db")
	})

	for _, path := range []string{"/err", "/plain"} {
		var body string
		entries := captureLogs(t, func() {
			resp, err := app.Test(httptest.NewRequest("GET", path, nil))
			if err != nil {
				t.Fatalf("test request failed: %v", err)
			}
			if resp.StatusCode != fiber.StatusInternalServerError {
				t.Fatalf("%s: expected 500, got %d", path, resp.StatusCode)
			}
			b, _ := io.ReadAll(resp.Body)
			body = string(b)
		})
		if !strings.Contains(body, "Something went wrong") {
			t.Fatalf("friendly message missing; body=%s", body)
		}
		if strings.Contains(body, "db timeout") || strings.Contains(body, "secret") {
			t.Fatalf("internal details leaked to user; body=%s", body)
		}
		if e, ok := findAction(entries, "server.error"); !ok || e.Level != "error" {
			t.Fatalf("%s: expected server.error log entry, got %+v", path, entries)
		}
	}
}

func TestClientErrorsKeepTheirStatus(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Get("/gone", func(c *fiber.Ctx) error { return fiber.ErrGone })

	resp, err := app.Test(httptest.NewRequest("GET", "/gone", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusGone {
		t.Fatalf("expected 410, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	app, _ := newTestApp(t, handlers.AppOptions{})
	status, body := call(t, app, "GET", "/no/such/page", "", nil)
	if status != fiber.StatusNotFound || body["error"] == nil {
		t.Fatalf("expected JSON 404, got %d %v", status, body)
	}
}
