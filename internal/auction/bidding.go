package auction

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

// Engine submits bids. It never touches current_bid itself: the machine only
// changes when a server snapshot comes back.
type Engine struct {
	api *client.API
	pub events.Publisher
}

func NewEngine(api *client.API, pub events.Publisher) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{api: api, pub: pub}
}

// PlaceBid checks the bid against the local view, sends it once and adopts
// the returned snapshot. A bid_too_low conflict is returned as is; the bidder
// decides whether to try a higher amount.
func (e *Engine) PlaceBid(ctx context.Context, m *Machine, amount decimal.Decimal) (domain.Auction, error) {
	s := e.api.Session()
	if !s.Authenticated() {
		return domain.Auction{}, errs.Forbidden("bid", "login required")
	}
	if !validate.Amount(amount) {
		return domain.Auction{}, errs.Invalid("amount", "must be a positive amount with at most two decimals")
	}
	if err := recheck(ctx, e.api, m, func() error { return biddable(m.Snapshot()) }); err != nil {
		return domain.Auction{}, err
	}
	view := m.Snapshot()
	if view.CreatorID == s.UserID {
		return domain.Auction{}, errs.Forbidden("bid", "sellers cannot bid on their own auction")
	}
	if !amount.GreaterThan(view.CurrentBid) {
		return domain.Auction{}, errs.Invalid("amount", "must be greater than current bid "+view.CurrentBid.String())
	}

	snap, err := e.api.Bid(ctx, view.ID, amount)
	if err != nil {
		if errors.Is(err, errs.ErrBidTooLow) {
			applog.Info(nil, "bid.rejected", map[string]any{"user_id": s.UserID, "auction_id": view.ID, "amount": amount.String(), "reason": err.Error()})
		}
		return domain.Auction{}, err
	}
	if err := m.Observe(snap); err != nil {
		return domain.Auction{}, err
	}
	applog.Audit(nil, "bid.accepted", map[string]any{"user_id": s.UserID, "auction_id": view.ID, "amount": amount.String()})
	events.Emit(ctx, e.pub, events.New(events.BidAccepted, view.ID, s.UserID, map[string]any{"amount": amount.String()}))
	return snap, nil
}

func biddable(v domain.Auction) error {
	if v.Status == domain.AuctionStarted {
		return nil
	}
	return &errs.ConflictError{
		Code:      errs.CodeInvalidTransition,
		Resource:  "auction " + v.ID,
		Current:   string(v.Status),
		Attempted: "bid",
		Message:   "auction " + v.ID + " is " + string(v.Status) + ", not taking bids",
	}
}
