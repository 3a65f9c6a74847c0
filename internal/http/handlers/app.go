package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
)

type AppOptions struct {
	AccessLog bool
	// RateLimit is requests per minute per IP; 0 disables the limiter.
	RateLimit int
	// LoginLimit is login attempts per 10 minutes per IP; 0 disables it.
	LoginLimit int
}

// ErrorHandler renders fiber errors as JSON. Anything at or above 500 is
// logged and replaced by a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	applog.Error(c, "server.error", err, nil)
	// Avoid leaking internals
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
}

// NewApp builds the fiber app with middleware and every route mounted.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.global.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}))
	}

	Routes(app, d, opts)
	return app
}

func Routes(app *fiber.App, d *Deps, opts AppOptions) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	login := []fiber.Handler{}
	if opts.LoginLimit > 0 {
		login = append(login, limiter.New(limiter.Config{
			Max:        opts.LoginLimit,
			Expiration: 10 * time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.login.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
			},
		}))
	}
	app.Post("/user/api/login", append(login, d.AuthHandler.Login)...)

	// Payment provider surface, not bearer-authenticated
	app.Get("/pay/:payment_id", d.PaymentHandler.Gateway)
	app.Post("/payments/webhook", d.PaymentHandler.Webhook)

	auction := app.Group("/auction/api", RequireUser(d.Auth))
	auction.Post("/auctions", d.AuctionHandler.Create)
	auction.Get("/auctions/:id", d.AuctionHandler.Get)
	auction.Delete("/auctions/:resource_type/:resource_id", d.AuctionHandler.Remove)
	auction.Post("/:id/bid", d.AuctionHandler.Bid)

	auctionAdmin := auction.Group("/admin", RequireAdmin())
	auctionAdmin.Put("/auctions/:id/review", d.AuctionHandler.Review)
	auctionAdmin.Post("/auctions/:id/review", d.AuctionHandler.Review)
	auctionAdmin.Put("/auctions/:id/finalize", d.AuctionHandler.Finalize)

	tx := app.Group("/transaction/api", RequireUser(d.Auth))
	tx.Post("/transactions", d.TransactionHandler.Create)
	tx.Get("/transactions/:id/contract", d.TransactionHandler.Contract)
	tx.Post("/transactions/:id/contract/sign", d.TransactionHandler.Sign)
	tx.Post("/transactions/:id/payment", d.PaymentHandler.Create)
	tx.Get("/transactions/:id/payment", d.PaymentHandler.Get)
	tx.Post("/transactions/:id/confirm-payment", d.PaymentHandler.Confirm)
	tx.Get("/transactions/:id/payment-status", d.PaymentHandler.Status)
	tx.Delete("/transactions/:id", d.TransactionHandler.Cancel)

	txAdmin := tx.Group("/admin", RequireAdmin())
	txAdmin.Get("/payments", d.PaymentHandler.Queue)
	txAdmin.Put("/payments/:payment_id/approve", d.PaymentHandler.Approve)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Page not found"})
	})
}
