package auction

import (
	"context"
	"errors"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/registry"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

// Desk runs the non-bidding auction operations: create, refresh, review,
// finalize and remove. Every machine it touches is kept in the registry.
type Desk struct {
	api      *client.API
	pub      events.Publisher
	machines *registry.Registry[*Machine]
}

func NewDesk(api *client.API, machines *registry.Registry[*Machine], pub events.Publisher) *Desk {
	if machines == nil {
		machines = registry.New[*Machine]()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Desk{api: api, pub: pub, machines: machines}
}

func (d *Desk) Create(ctx context.Context, req client.CreateAuctionRequest) (*Machine, error) {
	if _, ok := validate.ResourceType(string(req.ResourceType)); !ok {
		return nil, errs.Invalid("resource_type", "must be vehicle or battery")
	}
	if _, ok := validate.ID(req.ResourceID); !ok {
		return nil, errs.Invalid("resource_id", "is required")
	}
	if !validate.Amount(req.CurrentBid) {
		return nil, errs.Invalid("current_bid", "must be a positive amount")
	}
	if req.StartTime.IsZero() {
		return nil, errs.Invalid("start_time", "is required")
	}
	if req.EndTime != nil && !validate.Window(req.StartTime, *req.EndTime) {
		return nil, errs.Invalid("end_time", "must be after start_time")
	}
	a, err := d.api.CreateAuction(ctx, req)
	if err != nil {
		return nil, err
	}
	m := NewMachine(d.api.Session(), a)
	d.machines.Put(a.ID, m)
	return m, nil
}

// Machine returns the registered machine for id, fetching it on first use.
func (d *Desk) Machine(ctx context.Context, id string) (*Machine, error) {
	if m, ok := d.machines.Get(id); ok {
		return m, nil
	}
	return d.Refresh(ctx, id)
}

// Refresh reads the auction and feeds it to its machine.
func (d *Desk) Refresh(ctx context.Context, id string) (*Machine, error) {
	a, err := d.api.Auction(ctx, id)
	if err != nil {
		return nil, err
	}
	m := d.machines.Update(id, func(cur *Machine, ok bool) (*Machine, bool) {
		if ok {
			return cur, false
		}
		return NewMachine(d.api.Session(), a), true
	})
	if err := m.Observe(a); err != nil {
		return m, err
	}
	return m, nil
}

func (d *Desk) Review(ctx context.Context, id string, approve bool) (domain.Auction, error) {
	to, trig := domain.AuctionRejected, TriggerReject
	if approve {
		to, trig = domain.AuctionPrepare, TriggerApprove
	}
	return d.drive(ctx, id, to, trig, func() (domain.Auction, error) {
		return d.api.ReviewAuction(ctx, id, approve)
	})
}

// Finalize ends a started auction ahead of its end_time.
func (d *Desk) Finalize(ctx context.Context, id string) (domain.Auction, error) {
	a, err := d.drive(ctx, id, domain.AuctionEnded, TriggerFinalize, func() (domain.Auction, error) {
		return d.api.FinalizeAuction(ctx, id)
	})
	if err == nil {
		events.Emit(ctx, d.pub, events.New(events.AuctionEnded, id, d.api.Session().UserID, map[string]any{
			"winning_bidder_id": a.Winner(), "final_bid": a.CurrentBid.String(),
		}))
	}
	return a, err
}

func (d *Desk) drive(ctx context.Context, id string, to domain.AuctionStatus, trig Trigger, call func() (domain.Auction, error)) (domain.Auction, error) {
	m, err := d.Machine(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if err := recheck(ctx, d.api, m, func() error { return m.Check(to, trig) }); err != nil {
		return domain.Auction{}, err
	}
	a, err := call()
	if err != nil {
		return domain.Auction{}, err
	}
	if err := m.Observe(a); err != nil {
		return domain.Auction{}, err
	}
	applog.Audit(nil, "auction."+string(trig), map[string]any{"user_id": d.api.Session().UserID, "auction_id": id, "status": string(a.Status)})
	return a, nil
}

// Remove deletes the live auction of a resource. When the auction is known
// locally the ownership and status rules are checked before the call.
func (d *Desk) Remove(ctx context.Context, rt domain.ResourceType, resourceID string) error {
	if _, ok := validate.ResourceType(string(rt)); !ok {
		return errs.Invalid("resource_type", "must be vehicle or battery")
	}
	m, known := d.machines.Find(func(m *Machine) bool {
		v := m.Snapshot()
		return v.ResourceType == rt && v.ResourceID == resourceID && !v.Status.Terminal()
	})
	if known {
		if err := recheck(ctx, d.api, m, m.CanRemove); err != nil {
			return err
		}
	}
	if err := d.api.RemoveAuction(ctx, rt, resourceID); err != nil {
		return err
	}
	if known {
		d.machines.Delete(m.ID())
	}
	applog.Audit(nil, "auction.remove", map[string]any{"user_id": d.api.Session().UserID, "resource": string(rt) + "/" + resourceID})
	return nil
}

// recheck runs check against the local view. The server's clock starts and
// ends auctions without telling the client, so a conflict from a stale view
// earns one re-read of the auction before it is returned.
func recheck(ctx context.Context, api *client.API, m *Machine, check func() error) error {
	err := check()
	var ce *errs.ConflictError
	if !errors.As(err, &ce) {
		return err
	}
	a, rerr := api.Auction(ctx, m.ID())
	if rerr != nil {
		return rerr
	}
	if oerr := m.Observe(a); oerr != nil {
		return oerr
	}
	return check()
}
