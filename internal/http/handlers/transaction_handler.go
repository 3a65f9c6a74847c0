package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type TransactionHandler struct {
	Txs *services.TransactionService
}

func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var in services.CreateTransactionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	t, ct, err := h.Txs.Create(actorOf(c), in)
	if err != nil {
		return fail(c, "transaction.create", err)
	}
	applog.Audit(c, "transaction.create", map[string]any{"transaction_id": t.ID, "listing_id": t.ListingID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "transaction created",
		"transaction": t,
		"contract":    ct,
	})
}

func (h *TransactionHandler) Contract(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	t, ct, err := h.Txs.Contract(actorOf(c), id)
	if err != nil {
		return fail(c, "contract.get", err)
	}
	return c.JSON(fiber.Map{"transaction": t, "contract": ct})
}

func (h *TransactionHandler) Sign(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	ct, err := h.Txs.Sign(c.UserContext(), actorOf(c), id)
	if err != nil {
		return fail(c, "contract.sign", err)
	}
	applog.Audit(c, "contract.sign", map[string]any{"transaction_id": id, "status": string(ct.Status())})
	return c.JSON(fiber.Map{"contract": ct})
}

func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "transaction id")
	}
	if err := h.Txs.Cancel(c.UserContext(), actorOf(c), id); err != nil {
		return fail(c, "transaction.cancel", err)
	}
	applog.Audit(c, "transaction.cancel", map[string]any{"transaction_id": id})
	return c.JSON(fiber.Map{"message": "transaction cancelled"})
}
