package command

import (
	"context"
	"fmt"
	"time"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/auction"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/contract"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/lifecycle"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/payment"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/registry"
)

const DefaultPollTimeout = 30 * time.Second

// Dispatcher runs commands for one session. Callers dispatch one command at
// a time; nothing here reorders them.
type Dispatcher struct {
	api         *client.API
	desk        *auction.Desk
	bids        *auction.Engine
	life        *lifecycle.Manager
	pollTimeout time.Duration
}

type Options struct {
	Navigator    payment.Navigator
	Events       events.Publisher
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// New wires every component around one API client.
func New(api *client.API, opts Options) *Dispatcher {
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}
	coord := contract.New(api, pub)
	pipe := payment.New(api, coord, opts.Navigator, pub).WithInterval(opts.PollInterval)
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Dispatcher{
		api:         api,
		desk:        auction.NewDesk(api, registry.New[*auction.Machine](), pub),
		bids:        auction.NewEngine(api, pub),
		life:        lifecycle.New(api, coord, pipe, pub).WithRefresh(opts.PollInterval),
		pollTimeout: timeout,
	}
}

func (d *Dispatcher) Lifecycle() *lifecycle.Manager { return d.life }
func (d *Dispatcher) Desk() *auction.Desk           { return d.desk }

func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	res, err := d.route(ctx, cmd)
	fields := map[string]any{"user_id": d.api.Session().UserID}
	if err != nil {
		fields["reason"] = err.Error()
		applog.Info(nil, cmd.Name()+".fail", fields)
		return res, err
	}
	applog.Info(nil, cmd.Name(), fields)
	return res, nil
}

func (d *Dispatcher) route(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case CreateAuction:
		m, err := d.desk.Create(ctx, c.Request)
		if err != nil {
			return Result{}, err
		}
		a := m.Snapshot()
		return Result{Auction: &a}, nil
	case RefreshAuction:
		m, err := d.desk.Refresh(ctx, c.AuctionID)
		if err != nil {
			return Result{}, err
		}
		a := m.Snapshot()
		return Result{Auction: &a}, nil
	case PlaceBid:
		m, err := d.desk.Machine(ctx, c.AuctionID)
		if err != nil {
			return Result{}, err
		}
		a, err := d.bids.PlaceBid(ctx, m, c.Amount)
		if err != nil {
			return Result{}, err
		}
		return Result{Auction: &a}, nil
	case ReviewAuction:
		a, err := d.desk.Review(ctx, c.AuctionID, c.Approve)
		if err != nil {
			return Result{}, err
		}
		return Result{Auction: &a}, nil
	case FinalizeAuction:
		a, err := d.desk.Finalize(ctx, c.AuctionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Auction: &a}, nil
	case RemoveAuction:
		return Result{}, d.desk.Remove(ctx, c.ResourceType, c.ResourceID)
	case CreateTransaction:
		tx, err := d.life.Create(ctx, c.Request)
		if err != nil {
			return Result{}, err
		}
		ct, _ := d.life.Contracts().Contract(tx.ID)
		return Result{Transaction: &tx, Contract: &ct, Stage: d.life.Stage(tx.ID)}, nil
	case SignContract:
		ct, err := d.life.Sign(ctx, c.TransactionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Contract: &ct, Stage: d.life.Stage(c.TransactionID)}, nil
	case InitiatePayment:
		p, err := d.life.Pay(ctx, c.TransactionID, c.Method)
		if err != nil {
			return Result{}, err
		}
		return Result{Payment: &p, Stage: d.life.Stage(c.TransactionID)}, nil
	case ConfirmPayment:
		url, err := d.life.Payments().Confirm(ctx, c.TransactionID, c.Method)
		if err != nil {
			return Result{}, err
		}
		p, _ := d.life.Payments().Payment(c.TransactionID)
		return Result{Payment: &p, PaymentURL: url, Stage: d.life.Stage(c.TransactionID)}, nil
	case PollPayment:
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = d.pollTimeout
		}
		st, err := d.life.Payments().PollStatus(ctx, c.TransactionID, timeout)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: st, Stage: d.life.Stage(c.TransactionID)}, nil
	case ApprovePayment:
		p, err := d.life.Payments().AdminApprove(ctx, c.TransactionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Payment: &p, Status: p.Status}, nil
	case CancelTransaction:
		if err := d.life.Cancel(ctx, c.TransactionID); err != nil {
			return Result{}, err
		}
		return Result{Stage: d.life.Stage(c.TransactionID)}, nil
	case ShowTransaction:
		s, err := d.life.Snapshot(ctx, c.TransactionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Transaction: &s.Transaction, Contract: &s.Contract, Status: s.Payment, Stage: s.Stage}, nil
	case Purchase:
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = d.pollTimeout
		}
		tx, stage, err := d.life.Purchase(ctx, c.Request, c.Method, timeout)
		return Result{Transaction: &tx, Stage: stage}, err
	}
	return Result{}, fmt.Errorf("unknown command %T", cmd)
}
