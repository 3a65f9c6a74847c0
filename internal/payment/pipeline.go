// Package payment drives a transaction's payment: initiate once the contract
// is ready, hand the buyer to the gateway, then poll until the gateway result
// is known. Completion is an admin decision.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/registry"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

const DefaultInterval = 2 * time.Second

// Navigator sends the buyer to the gateway page. In a browser this is a full
// redirect; the outcome is only ever learned by polling.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error { return f(ctx, url) }

// Gate reports whether a transaction's contract allows payment.
type Gate interface {
	Status(txID string) domain.ContractStatus
}

type Pipeline struct {
	api      *client.API
	gate     Gate
	nav      Navigator
	pub      events.Publisher
	interval time.Duration
	payments *registry.Registry[domain.Payment]
}

func New(api *client.API, gate Gate, nav Navigator, pub events.Publisher) *Pipeline {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Pipeline{api: api, gate: gate, nav: nav, pub: pub, interval: DefaultInterval, payments: registry.New[domain.Payment]()}
}

// WithInterval sets the poll interval.
func (p *Pipeline) WithInterval(d time.Duration) *Pipeline {
	if d > 0 {
		p.interval = d
	}
	return p
}

// Payment returns the latest attempt known locally for a transaction.
func (p *Pipeline) Payment(txID string) (domain.Payment, bool) { return p.payments.Get(txID) }

// Initiate creates the payment in initiated. The amount is fixed here and
// never recomputed.
func (p *Pipeline) Initiate(ctx context.Context, txID string, method domain.PaymentMethod, amount decimal.Decimal) (domain.Payment, error) {
	if !method.Valid() {
		return domain.Payment{}, errs.Invalid("payment_method", "must be e-wallet, bank or cash")
	}
	if !validate.Amount(amount) {
		return domain.Payment{}, errs.Invalid("amount", "must be a positive amount")
	}
	if st := p.gate.Status(txID); st != domain.ContractReady {
		return domain.Payment{}, &errs.ConflictError{
			Code:     errs.CodeContractNotReady,
			Resource: "transaction " + txID,
			Current:  string(st),
			Message:  "contract for " + txID + " is " + string(st) + ", both parties must sign first",
		}
	}
	pay, err := p.api.CreatePayment(ctx, txID, method, amount)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := p.Observe(pay); err != nil {
		return pay, err
	}
	applog.Audit(nil, "payment.initiate", map[string]any{"user_id": p.api.Session().UserID, "transaction_id": txID, "amount": amount.String(), "method": string(method)})
	events.Emit(ctx, p.pub, events.New(events.PaymentInitiated, txID, p.api.Session().UserID, map[string]any{"payment_id": pay.ID, "amount": amount.String()}))
	return pay, nil
}

// Confirm asks for the gateway URL and navigates to it for redirect methods.
// After a failed attempt the backend opens a new attempt with the original
// amount; the failed record stays failed.
func (p *Pipeline) Confirm(ctx context.Context, txID string, method domain.PaymentMethod) (string, error) {
	if !method.Valid() {
		return "", errs.Invalid("payment_method", "must be e-wallet, bank or cash")
	}
	if cur, ok := p.payments.Get(txID); ok && (cur.Status == domain.PaymentPending || cur.Status == domain.PaymentCompleted) {
		return "", errs.Transition("payment "+cur.ID, string(cur.Status), string(domain.PaymentPending))
	}
	url, pay, err := p.api.ConfirmPayment(ctx, txID, method)
	if err != nil {
		return "", err
	}
	if err := p.Observe(pay); err != nil {
		return "", err
	}
	applog.Audit(nil, "payment.confirm", map[string]any{"user_id": p.api.Session().UserID, "transaction_id": txID, "payment_id": pay.ID, "attempt": pay.Attempt})
	if method.Redirect() && p.nav != nil {
		if err := p.nav.Navigate(ctx, url); err != nil {
			return url, err
		}
	}
	return url, nil
}

// PollStatus reads the payment status now and then every interval until it
// is pending, failed or completed. Only errors worth retrying on the read are
// retried. When timeout passes first the result is a *errs.PollTimeoutError;
// when ctx is cancelled it is ctx.Err() and nothing is observed afterwards.
func (p *Pipeline) PollStatus(ctx context.Context, txID string, timeout time.Duration) (domain.PaymentStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	start := time.Now()
	last := ""
	for {
		st, err := p.api.PaymentStatus(pollCtx, txID)
		if err == nil {
			st, err = p.observeRead(pollCtx, txID, st)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		switch {
		case err == nil:
			last = string(st)
			if st != domain.PaymentInitiated {
				applog.Info(nil, "payment.poll.done", map[string]any{"user_id": p.api.Session().UserID, "transaction_id": txID, "status": last})
				return st, nil
			}
		case errs.Retryable(err) || errors.Is(err, context.DeadlineExceeded):
			applog.Info(nil, "payment.poll.retry", map[string]any{"user_id": p.api.Session().UserID, "transaction_id": txID, "reason": err.Error()})
		default:
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &errs.PollTimeoutError{TransactionID: txID, Waited: time.Since(start), LastStatus: last}
		case <-ticker.C:
		}
	}
}

// AdminApprove moves a pending payment to completed. Admins only.
func (p *Pipeline) AdminApprove(ctx context.Context, txID string) (domain.Payment, error) {
	s := p.api.Session()
	if !s.IsAdmin() {
		return domain.Payment{}, errs.Forbidden("approve payment", "admin role required")
	}
	cur, err := p.Refresh(ctx, txID)
	if err != nil {
		return domain.Payment{}, err
	}
	if cur.Status != domain.PaymentPending {
		code := errs.CodeInvalidTransition
		if cur.Status.Terminal() {
			code = errs.CodePaymentTerminal
		}
		return cur, &errs.ConflictError{Code: code, Resource: "payment " + cur.ID, Current: string(cur.Status), Attempted: string(domain.PaymentCompleted)}
	}
	pay, err := p.api.ApprovePayment(ctx, cur.ID)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := p.Observe(pay); err != nil {
		return pay, err
	}
	applog.Audit(nil, "payment.approve", map[string]any{"user_id": s.UserID, "transaction_id": txID, "payment_id": pay.ID})
	return pay, nil
}

// Refresh reads the latest attempt from the backend.
func (p *Pipeline) Refresh(ctx context.Context, txID string) (domain.Payment, error) {
	pay, err := p.api.Payment(ctx, txID)
	if err != nil {
		return pay, err
	}
	return pay, p.Observe(pay)
}
