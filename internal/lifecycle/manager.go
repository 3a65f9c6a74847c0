// Package lifecycle takes a purchase from transaction creation through the
// two signatures, payment and admin approval.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/contract"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/payment"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/registry"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

// Stage is what the UI shows for a transaction. A pending payment is its own
// stage: the buyer has paid but the money is not confirmed until an admin
// approves it.
type Stage string

const (
	StageAwaitingSignatures Stage = "awaiting_signatures"
	StageReadyToPay         Stage = "ready_to_pay"
	StagePaymentInitiated   Stage = "payment_initiated"
	StageAwaitingApproval   Stage = "awaiting_approval"
	StagePaymentFailed      Stage = "payment_failed"
	StageCompleted          Stage = "completed"
	StageCancelled          Stage = "cancelled"
)

const DefaultRefresh = 2 * time.Second

type Manager struct {
	api       *client.API
	contracts *contract.Coordinator
	payments  *payment.Pipeline
	pub       events.Publisher
	txs       *registry.Registry[domain.Transaction]
	refresh   time.Duration
}

func New(api *client.API, contracts *contract.Coordinator, payments *payment.Pipeline, pub events.Publisher) *Manager {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Manager{
		api:       api,
		contracts: contracts,
		payments:  payments,
		pub:       pub,
		txs:       registry.New[domain.Transaction](),
		refresh:   DefaultRefresh,
	}
}

// WithRefresh sets how often AwaitReady re-reads the contract.
func (m *Manager) WithRefresh(d time.Duration) *Manager {
	if d > 0 {
		m.refresh = d
	}
	return m
}

func (m *Manager) Contracts() *contract.Coordinator { return m.contracts }
func (m *Manager) Payments() *payment.Pipeline      { return m.payments }

// Transaction returns the last known copy of a transaction.
func (m *Manager) Transaction(txID string) (domain.Transaction, bool) {
	if tx, ok := m.contracts.Transaction(txID); ok {
		return tx, true
	}
	return m.txs.Get(txID)
}

// Create opens a transaction and its contract for the session's user as
// buyer. A listing with an open transaction known to this client is refused
// without asking the backend; the backend refuses the rest.
func (m *Manager) Create(ctx context.Context, req client.CreateTransactionRequest) (domain.Transaction, error) {
	s := m.api.Session()
	if !s.Authenticated() {
		return domain.Transaction{}, errs.Forbidden("create transaction", "login required")
	}
	if _, ok := validate.ID(req.ListingID); !ok {
		return domain.Transaction{}, errs.Invalid("listing_id", "is required")
	}
	if _, ok := validate.ID(req.SellerID); !ok {
		return domain.Transaction{}, errs.Invalid("seller_id", "is required")
	}
	if req.SellerID == s.UserID {
		return domain.Transaction{}, errs.Invalid("seller_id", "buyer and seller must differ")
	}
	if !validate.Amount(req.FinalPrice) {
		return domain.Transaction{}, errs.Invalid("final_price", "must be a positive amount")
	}
	if open, ok := m.txs.Find(func(t domain.Transaction) bool {
		return t.ListingID == req.ListingID && m.status(t.ID) == domain.TransactionOpen
	}); ok {
		return domain.Transaction{}, &errs.ConflictError{
			Code:     errs.CodeOpenTransaction,
			Resource: "listing " + req.ListingID,
			Message:  "listing " + req.ListingID + " already has open transaction " + open.ID,
		}
	}

	tx, ct, err := m.api.CreateTransaction(ctx, req)
	if err != nil {
		return domain.Transaction{}, err
	}
	m.txs.Put(tx.ID, tx)
	m.contracts.Track(ctx, tx, ct)
	applog.Audit(nil, "transaction.create", map[string]any{"user_id": s.UserID, "transaction_id": tx.ID, "listing_id": tx.ListingID})
	return tx, nil
}

func (m *Manager) status(txID string) domain.TransactionStatus {
	tx, _ := m.Transaction(txID)
	return tx.Status
}

// Sign signs for the session's party. Signing twice is a no-op.
func (m *Manager) Sign(ctx context.Context, txID string) (domain.Contract, error) {
	ct, err := m.contracts.Sign(ctx, txID)
	if errors.Is(err, errs.ErrAlreadySigned) {
		applog.Info(nil, "contract.sign.noop", map[string]any{"user_id": m.api.Session().UserID, "transaction_id": txID})
		return ct, nil
	}
	return ct, err
}

// AwaitReady blocks until both signatures are in, re-reading the contract
// every refresh interval. It reports whether this session should go on to
// pay, which is only true for the buyer; the seller just sees the stage.
func (m *Manager) AwaitReady(ctx context.Context, txID string) (bool, error) {
	ready := m.contracts.Ready(txID)
	t := time.NewTicker(m.refresh)
	defer t.Stop()
	for {
		select {
		case <-ready:
			tx, _ := m.Transaction(txID)
			party, _ := tx.PartyOf(m.api.Session().UserID)
			return party == domain.PartyBuyer, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
			tx, _, err := m.contracts.Refresh(ctx, txID)
			if err != nil {
				return false, err
			}
			if tx.Status != domain.TransactionOpen {
				return false, errs.TransactionClosed(txID)
			}
		}
	}
}

// Pay initiates the payment for the full final price.
func (m *Manager) Pay(ctx context.Context, txID string, method domain.PaymentMethod) (domain.Payment, error) {
	tx, ok := m.Transaction(txID)
	if !ok {
		var err error
		if tx, _, err = m.contracts.Refresh(ctx, txID); err != nil {
			return domain.Payment{}, err
		}
	}
	if party, _ := tx.PartyOf(m.api.Session().UserID); party != domain.PartyBuyer {
		return domain.Payment{}, errs.Forbidden("pay", "only the buyer pays")
	}
	if tx.Status != domain.TransactionOpen {
		return domain.Payment{}, errs.TransactionClosed(txID)
	}
	return m.payments.Initiate(ctx, txID, method, tx.FinalPrice)
}

// Settle confirms the payment, sends the buyer to the gateway and polls until
// the outcome is known or timeout passes.
func (m *Manager) Settle(ctx context.Context, txID string, method domain.PaymentMethod, timeout time.Duration) (Stage, error) {
	if _, err := m.payments.Confirm(ctx, txID, method); err != nil {
		return m.Stage(txID), err
	}
	if _, err := m.payments.PollStatus(ctx, txID, timeout); err != nil {
		return m.Stage(txID), err
	}
	return m.Stage(txID), nil
}

// Purchase is the buyer's whole flow for one listing: create, sign, wait
// for the seller, pay and settle.
func (m *Manager) Purchase(ctx context.Context, req client.CreateTransactionRequest, method domain.PaymentMethod, timeout time.Duration) (domain.Transaction, Stage, error) {
	tx, err := m.Create(ctx, req)
	if err != nil {
		return tx, "", err
	}
	if _, err := m.Sign(ctx, tx.ID); err != nil {
		return tx, m.Stage(tx.ID), err
	}
	if _, err := m.AwaitReady(ctx, tx.ID); err != nil {
		return tx, m.Stage(tx.ID), err
	}
	if _, err := m.Pay(ctx, tx.ID, method); err != nil {
		return tx, m.Stage(tx.ID), err
	}
	st, err := m.Settle(ctx, tx.ID, method, timeout)
	return tx, st, err
}

// Cancel closes the transaction for either party until its payment completes.
func (m *Manager) Cancel(ctx context.Context, txID string) error {
	if pay, ok := m.payments.Payment(txID); ok && pay.Status == domain.PaymentCompleted {
		return &errs.ConflictError{Code: errs.CodePaymentTerminal, Resource: "transaction " + txID, Current: string(pay.Status),
			Message: "payment for " + txID + " is completed, the transaction can no longer be cancelled"}
	}
	if err := m.api.CancelTransaction(ctx, txID); err != nil {
		return err
	}
	m.contracts.MarkStatus(txID, domain.TransactionCancelled)
	m.txs.Update(txID, func(cur domain.Transaction, ok bool) (domain.Transaction, bool) {
		cur.Status = domain.TransactionCancelled
		return cur, ok
	})
	applog.Audit(nil, "transaction.cancel", map[string]any{"user_id": m.api.Session().UserID, "transaction_id": txID})
	events.Emit(ctx, m.pub, events.New(events.TxCancelled, txID, m.api.Session().UserID, nil))
	return nil
}

// Stage derives the UI stage from local state.
func (m *Manager) Stage(txID string) Stage {
	tx, _ := m.Transaction(txID)
	switch tx.Status {
	case domain.TransactionCancelled:
		return StageCancelled
	case domain.TransactionCompleted:
		return StageCompleted
	}
	if pay, ok := m.payments.Payment(txID); ok {
		switch pay.Status {
		case domain.PaymentCompleted:
			return StageCompleted
		case domain.PaymentPending:
			return StageAwaitingApproval
		case domain.PaymentFailed:
			return StagePaymentFailed
		case domain.PaymentInitiated:
			if pay.ID != "" {
				return StagePaymentInitiated
			}
		}
	}
	if m.contracts.Status(txID) == domain.ContractReady {
		return StageReadyToPay
	}
	return StageAwaitingSignatures
}

type Snapshot struct {
	Transaction domain.Transaction
	Contract    domain.Contract
	Payment     domain.PaymentStatus
	Stage       Stage
}

// Snapshot refreshes contract and payment status together.
func (m *Manager) Snapshot(ctx context.Context, txID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tx, ct, err := m.contracts.Refresh(gctx, txID)
		snap.Transaction, snap.Contract = tx, ct
		return err
	})
	g.Go(func() error {
		st, err := m.api.PaymentStatus(gctx, txID)
		snap.Payment = st
		return err
	})
	if err := g.Wait(); err != nil {
		return snap, err
	}
	m.txs.Put(txID, snap.Transaction)
	// the status endpoint says initiated when no attempt exists yet
	if _, known := m.payments.Payment(txID); known || snap.Payment != domain.PaymentInitiated {
		if _, err := m.payments.Refresh(ctx, txID); err != nil && !errs.IsNotFound(err) {
			return snap, err
		}
	}
	snap.Stage = m.Stage(txID)
	return snap, nil
}
