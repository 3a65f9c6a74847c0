package payment

import (
	"context"
	"errors"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
)

// next lists the statuses an attempt may be observed in after each status.
// Skipping pending is allowed because an approval can land between polls.
var next = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentInitiated: {domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed},
	domain.PaymentPending:   {domain.PaymentCompleted, domain.PaymentFailed},
}

// CanMove reports whether an attempt in from may later be seen in to.
func CanMove(from, to domain.PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Observe records a server copy of an attempt. A newer attempt replaces the
// previous one; the same attempt must follow the table, so a terminal record
// never changes.
func (p *Pipeline) Observe(pay domain.Payment) error {
	var err error
	p.payments.Update(pay.TransactionID, func(cur domain.Payment, ok bool) (domain.Payment, bool) {
		if !ok || pay.Attempt > cur.Attempt {
			return pay, true
		}
		if pay.Attempt < cur.Attempt {
			// older attempt; the newer one is what matters
			return cur, false
		}
		if !CanMove(cur.Status, pay.Status) {
			err = terminalConflict(cur, pay.Status)
			return cur, false
		}
		return pay, true
	})
	return err
}

// observeStatus applies a status-only reading to the latest known attempt.
func (p *Pipeline) observeStatus(txID string, st domain.PaymentStatus) error {
	var err error
	p.payments.Update(txID, func(cur domain.Payment, ok bool) (domain.Payment, bool) {
		if !ok {
			return domain.Payment{TransactionID: txID, Status: st}, true
		}
		if !CanMove(cur.Status, st) {
			err = terminalConflict(cur, st)
			return cur, false
		}
		cur.Status = st
		return cur, true
	})
	return err
}

// observeRead applies a status read. A read the cached attempt cannot reach
// usually means another session opened a new attempt, so the payment record
// is fetched and its attempt replaces the cached one.
func (p *Pipeline) observeRead(ctx context.Context, txID string, st domain.PaymentStatus) (domain.PaymentStatus, error) {
	err := p.observeStatus(txID, st)
	var ce *errs.ConflictError
	if !errors.As(err, &ce) {
		return st, err
	}
	pay, rerr := p.Refresh(ctx, txID)
	if rerr != nil {
		return "", rerr
	}
	return pay.Status, nil
}

func terminalConflict(cur domain.Payment, to domain.PaymentStatus) error {
	code := errs.CodeInvalidTransition
	if cur.Status.Terminal() {
		code = errs.CodePaymentTerminal
	}
	return &errs.ConflictError{
		Code:      code,
		Resource:  "payment " + cur.ID,
		Current:   string(cur.Status),
		Attempted: string(to),
	}
}
