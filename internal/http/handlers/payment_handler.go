package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

type paymentRequest struct {
	Method string          `json:"payment_method"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	p, err := h.Payments.Create(c.UserContext(), actorOf(c), id, req.Method, req.Amount)
	if err != nil {
		return fail(c, "payment.create", err)
	}
	applog.Audit(c, "payment.create", map[string]any{"transaction_id": id, "payment_id": p.ID, "amount": p.Amount.String()})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment": p})
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	p, err := h.Payments.Latest(actorOf(c), id)
	if err != nil {
		return fail(c, "payment.get", err)
	}
	return c.JSON(fiber.Map{"payment": p})
}

func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	url, p, err := h.Payments.Confirm(c.UserContext(), actorOf(c), id, req.Method)
	if err != nil {
		return fail(c, "payment.confirm", err)
	}
	applog.Audit(c, "payment.confirm", map[string]any{"transaction_id": id, "payment_id": p.ID, "attempt": p.Attempt})
	return c.JSON(fiber.Map{"payment_url": url, "payment": p})
}

func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	st, err := h.Payments.Status(actorOf(c), id)
	if err != nil {
		return fail(c, "payment.status", err)
	}
	return c.JSON(fiber.Map{"status": st})
}

type webhookRequest struct {
	PaymentID  string `json:"payment_id"`
	ResultCode int    `json:"result_code"`
}

// Webhook receives the gateway's result for an attempt.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	pid, ok := validate.ID(req.PaymentID)
	if !ok {
		return badRequest(c, "payment_id")
	}
	p, err := h.Payments.GatewayResult(c.UserContext(), pid, req.ResultCode)
	if err != nil {
		return fail(c, "payment.webhook", err)
	}
	applog.Audit(c, "payment.webhook", map[string]any{"payment_id": pid, "result_code": req.ResultCode, "status": string(p.Status)})
	return c.JSON(fiber.Map{"payment": p})
}

// Gateway is a stand-in for the external payment page: visiting
// /pay/:payment_id?result=N reports result N for the attempt.
func (h *PaymentHandler) Gateway(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("payment_id"))
	if !ok {
		return badRequest(c, "payment id")
	}
	p, err := h.Payments.GatewayResult(c.UserContext(), pid, c.QueryInt("result", 0))
	if err != nil {
		return fail(c, "payment.gateway", err)
	}
	return c.JSON(fiber.Map{"payment": p})
}

func (h *PaymentHandler) Approve(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("payment_id"))
	if !ok {
		return badRequest(c, "payment id")
	}
	p, err := h.Payments.Approve(c.UserContext(), actorOf(c), pid)
	if err != nil {
		return fail(c, "payment.approve", err)
	}
	applog.Audit(c, "payment.approve", map[string]any{"payment_id": pid, "transaction_id": p.TransactionID})
	return c.JSON(fiber.Map{"payment": p})
}

func (h *PaymentHandler) Queue(c *fiber.Ctx) error {
	ps, err := h.Payments.Queue(actorOf(c), c.Query("status"))
	if err != nil {
		return fail(c, "payment.queue", err)
	}
	return c.JSON(fiber.Map{"payments": ps})
}
