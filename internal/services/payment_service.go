package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type PaymentService struct {
	Txs       *TransactionService
	Payments  *repos.PaymentRepo
	Events    events.Publisher
	PublicURL string
}

func NewPaymentService(txs *TransactionService, payments *repos.PaymentRepo, pub events.Publisher, publicURL string) *PaymentService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &PaymentService{Txs: txs, Payments: payments, Events: pub, PublicURL: publicURL}
}

// buyerTx loads an open transaction the actor is buying.
func (s *PaymentService) buyerTx(actor Actor, txID string) (domain.Transaction, error) {
	t, party, err := s.Txs.load(actor, txID)
	if err != nil {
		return t, err
	}
	if party != domain.PartyBuyer {
		return t, forbidden("only the buyer can pay")
	}
	if t.Status != domain.TransactionOpen {
		return t, conflict(errs.CodeTransactionClosed, "transaction is "+string(t.Status), nil)
	}
	return t, nil
}

func (s *PaymentService) latest(txID string) (domain.Payment, bool, error) {
	p, err := s.Payments.Latest(txID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	return p, err == nil, err
}

// Create opens the first payment attempt. It needs a fully signed contract
// and the exact final price.
func (s *PaymentService) Create(ctx context.Context, actor Actor, txID string, method string, amount decimal.Decimal) (domain.Payment, error) {
	m, ok := validate.PaymentMethod(method)
	if !ok {
		return domain.Payment{}, invalid("payment_method must be e-wallet, bank or cash")
	}
	t, err := s.buyerTx(actor, txID)
	if err != nil {
		return domain.Payment{}, err
	}
	c, err := s.Txs.Tx.Contract(txID)
	if err != nil {
		return domain.Payment{}, err
	}
	if c.Status() != domain.ContractReady {
		return domain.Payment{}, conflict(errs.CodeContractNotReady, "contract is "+string(c.Status()), nil)
	}
	if !amount.Equal(t.FinalPrice) {
		return domain.Payment{}, invalid("amount must equal the final price " + t.FinalPrice.String())
	}
	prev, exists, err := s.latest(txID)
	if err != nil {
		return domain.Payment{}, err
	}
	attempt := 1
	if exists {
		if prev.Status != domain.PaymentFailed {
			return domain.Payment{}, badTransition("payment", string(prev.Status), string(domain.PaymentInitiated))
		}
		attempt = prev.Attempt + 1
	}
	return s.open(ctx, actor, txID, m, amount, attempt)
}

func (s *PaymentService) open(ctx context.Context, actor Actor, txID string, m domain.PaymentMethod, amount decimal.Decimal, attempt int) (domain.Payment, error) {
	p := domain.Payment{
		ID:            uuid.NewString(),
		TransactionID: txID,
		Amount:        amount,
		Method:        m,
		Status:        domain.PaymentInitiated,
		Attempt:       attempt,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Payments.Create(p); err != nil {
		if isUnique(err) {
			return domain.Payment{}, badTransition("payment", "initiated", "initiated")
		}
		return domain.Payment{}, err
	}
	s.publish(ctx, events.New(events.PaymentInitiated, txID, actor.ID, map[string]any{
		"payment_id": p.ID, "attempt": attempt, "method": string(m),
	}))
	return p, nil
}

// Latest returns the newest attempt for a transaction.
func (s *PaymentService) Latest(actor Actor, txID string) (domain.Payment, error) {
	if _, _, err := s.Txs.load(actor, txID); err != nil {
		return domain.Payment{}, err
	}
	p, ok, err := s.latest(txID)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, notFound("no payment for this transaction")
	}
	return p, nil
}

// Confirm hands back the gateway URL for the current attempt. A failed
// attempt is retried by opening a new one with the same amount; the failed
// record is left as it was. Cash settles to pending straight away.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, txID string, method string) (string, domain.Payment, error) {
	m, ok := validate.PaymentMethod(method)
	if !ok {
		return "", domain.Payment{}, invalid("payment_method must be e-wallet, bank or cash")
	}
	if _, err := s.buyerTx(actor, txID); err != nil {
		return "", domain.Payment{}, err
	}
	p, exists, err := s.latest(txID)
	if err != nil {
		return "", p, err
	}
	if !exists {
		return "", p, invalid("no payment initiated for this transaction")
	}

	switch p.Status {
	case domain.PaymentInitiated:
		if err := s.Payments.SetMethod(p.ID, m); err != nil {
			return "", p, err
		}
		p.Method = m
	case domain.PaymentFailed:
		if p, err = s.open(ctx, actor, txID, m, p.Amount, p.Attempt+1); err != nil {
			return "", p, err
		}
	default:
		return "", p, badTransition("payment", string(p.Status), string(domain.PaymentPending))
	}

	if m == domain.MethodCash {
		if _, err := s.settle(ctx, p, domain.PaymentPending); err != nil {
			return "", p, err
		}
		p.Status = domain.PaymentPending
	}
	return s.PublicURL + "/pay/" + p.ID, p, nil
}

// Status reports the latest attempt's status; "initiated" when none exists.
func (s *PaymentService) Status(actor Actor, txID string) (domain.PaymentStatus, error) {
	if _, _, err := s.Txs.load(actor, txID); err != nil {
		return "", err
	}
	p, ok, err := s.latest(txID)
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.PaymentInitiated, nil
	}
	return p.Status, nil
}

// GatewayResult records the outcome reported by the external payment page.
// Code 0 means the buyer paid (pending admin approval), anything else failed.
// Results for an attempt that already moved are ignored.
func (s *PaymentService) GatewayResult(ctx context.Context, paymentID string, resultCode int) (domain.Payment, error) {
	p, err := s.Payments.Get(paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("payment not found")
	}
	if err != nil {
		return p, err
	}
	if p.Status != domain.PaymentInitiated {
		return p, nil
	}
	to := domain.PaymentFailed
	if resultCode == 0 {
		to = domain.PaymentPending
	}
	return s.settle(ctx, p, to)
}

// Approve is the admin's confirmation that money arrived: pending → completed.
func (s *PaymentService) Approve(ctx context.Context, actor Actor, paymentID string) (domain.Payment, error) {
	if !actor.IsAdmin() {
		return domain.Payment{}, forbidden("only admins approve payments")
	}
	p, err := s.Payments.Get(paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("payment not found")
	}
	if err != nil {
		return p, err
	}
	if p, err = s.settle(ctx, p, domain.PaymentCompleted); err != nil {
		return p, err
	}
	if err := s.Txs.Tx.UpdateStatus(p.TransactionID, domain.TransactionCompleted); err != nil {
		return p, err
	}
	return p, nil
}

// Queue lists payments waiting in a status, newest first.
func (s *PaymentService) Queue(actor Actor, status string) ([]domain.Payment, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("admin only")
	}
	st := domain.PaymentStatus(status)
	if st == "" {
		st = domain.PaymentPending
	}
	return s.Payments.ListByStatus(st, 100)
}

var paymentSources = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentPending:   {domain.PaymentInitiated},
	domain.PaymentCompleted: {domain.PaymentPending},
	domain.PaymentFailed:    {domain.PaymentInitiated, domain.PaymentPending},
}

func (s *PaymentService) settle(ctx context.Context, p domain.Payment, to domain.PaymentStatus) (domain.Payment, error) {
	moved, err := s.Payments.Move(p.ID, to, paymentSources[to]...)
	if err != nil {
		return p, err
	}
	cur, err := s.Payments.Get(p.ID)
	if err != nil {
		return p, err
	}
	if !moved {
		code := errs.CodeInvalidTransition
		if cur.Status.Terminal() {
			code = errs.CodePaymentTerminal
		}
		return cur, conflict(code, "payment is "+string(cur.Status)+", cannot move to "+string(to),
			map[string]any{"current": string(cur.Status), "attempted": string(to)})
	}
	s.publish(ctx, events.New(events.PaymentStatus, p.TransactionID, "", map[string]any{
		"payment_id": p.ID, "status": string(cur.Status),
	}))
	return cur, nil
}

func (s *PaymentService) publish(ctx context.Context, e events.Event) {
	events.Emit(ctx, s.Events, e)
}
