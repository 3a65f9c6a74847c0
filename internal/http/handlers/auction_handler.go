package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type AuctionHandler struct {
	Auctions *services.AuctionService
}

func (h *AuctionHandler) Create(c *fiber.Ctx) error {
	var in services.CreateAuctionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	a, err := h.Auctions.Create(actorOf(c), in)
	if err != nil {
		return fail(c, "auction.create", err)
	}
	applog.Audit(c, "auction.create", map[string]any{"auction_id": a.ID, "resource": string(a.ResourceType) + "/" + a.ResourceID})
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *AuctionHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "auction id")
	}
	a, err := h.Auctions.Get(id)
	if err != nil {
		return fail(c, "auction.get", err)
	}
	return c.JSON(a)
}

type bidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *AuctionHandler) Bid(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "auction id")
	}
	var req bidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	a, err := h.Auctions.Bid(c.UserContext(), actorOf(c), id, req.Amount)
	if err != nil {
		return fail(c, "auction.bid", err)
	}
	applog.Audit(c, "auction.bid", map[string]any{"auction_id": id, "amount": req.Amount.String()})
	return c.JSON(a)
}

type reviewRequest struct {
	Approve *bool  `json:"approve"`
	Status  string `json:"status"`
}

// Review accepts {approve: bool} or {status: "prepare"|"rejected"}.
func (h *AuctionHandler) Review(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "auction id")
	}
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	var approve bool
	switch {
	case req.Approve != nil:
		approve = *req.Approve
	case req.Status == "prepare":
		approve = true
	case req.Status == "rejected":
		approve = false
	default:
		return badRequest(c, "approve")
	}
	a, err := h.Auctions.Review(c.UserContext(), actorOf(c), id, approve)
	if err != nil {
		return fail(c, "auction.review", err)
	}
	applog.Audit(c, "auction.review", map[string]any{"auction_id": id, "status": string(a.Status)})
	return c.JSON(a)
}

func (h *AuctionHandler) Finalize(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "auction id")
	}
	a, err := h.Auctions.Finalize(c.UserContext(), actorOf(c), id)
	if err != nil {
		return fail(c, "auction.finalize", err)
	}
	applog.Audit(c, "auction.finalize", map[string]any{"auction_id": id, "winner": a.Winner()})
	return c.JSON(a)
}

func (h *AuctionHandler) Remove(c *fiber.Ctx) error {
	rid, ok := validate.ID(c.Params("resource_id"))
	if !ok {
		return badRequest(c, "resource id")
	}
	if err := h.Auctions.Remove(actorOf(c), c.Params("resource_type"), rid); err != nil {
		return fail(c, "auction.remove", err)
	}
	applog.Audit(c, "auction.remove", map[string]any{"resource": c.Params("resource_type") + "/" + rid})
	return c.JSON(fiber.Map{"message": "resource is no longer auctioned"})
}
