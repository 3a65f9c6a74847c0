// Package contract tracks the two signatures on a transaction's contract and
// signals once, per transaction, when both are in.
package contract

import (
	"context"
	"errors"
	"sync"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/registry"
)

type entry struct {
	mu    sync.Mutex
	tx    domain.Transaction
	c     domain.Contract
	ready chan struct{}
	once  sync.Once
}

type Coordinator struct {
	api     *client.API
	pub     events.Publisher
	entries *registry.Registry[*entry]
}

func New(api *client.API, pub events.Publisher) *Coordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Coordinator{api: api, pub: pub, entries: registry.New[*entry]()}
}

func (c *Coordinator) entry(txID string) *entry {
	return c.entries.Update(txID, func(cur *entry, ok bool) (*entry, bool) {
		if ok {
			return cur, false
		}
		return &entry{ready: make(chan struct{})}, true
	})
}

// Track records a transaction and its contract as returned by the backend.
func (c *Coordinator) Track(ctx context.Context, tx domain.Transaction, ct domain.Contract) {
	c.observe(ctx, tx.ID, &tx, ct)
}

// observe merges a server reading. Signature flags only ever go from false
// to true; a stale reading cannot clear them.
func (c *Coordinator) observe(ctx context.Context, txID string, tx *domain.Transaction, ct domain.Contract) domain.Contract {
	e := c.entry(txID)
	e.mu.Lock()
	if tx != nil {
		e.tx = *tx
	}
	e.c.TransactionID = txID
	if ct.Term != "" {
		e.c.Term = ct.Term
	}
	e.c.SignedByBuyer = e.c.SignedByBuyer || ct.SignedByBuyer
	e.c.SignedBySeller = e.c.SignedBySeller || ct.SignedBySeller
	out := e.c
	e.mu.Unlock()

	if out.Status() == domain.ContractReady {
		e.once.Do(func() {
			close(e.ready)
			applog.Audit(nil, "contract.ready", map[string]any{"user_id": c.api.Session().UserID, "transaction_id": txID})
			events.Emit(ctx, c.pub, events.New(events.ContractReady, txID, c.api.Session().UserID, nil))
		})
	}
	return out
}

// Ready is closed the first time both signatures are observed.
func (c *Coordinator) Ready(txID string) <-chan struct{} { return c.entry(txID).ready }

func (c *Coordinator) Status(txID string) domain.ContractStatus {
	ct, _ := c.Contract(txID)
	return ct.Status()
}

func (c *Coordinator) Contract(txID string) (domain.Contract, bool) {
	e, ok := c.entries.Get(txID)
	if !ok {
		return domain.Contract{TransactionID: txID}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c, e.tx.ID != ""
}

func (c *Coordinator) Transaction(txID string) (domain.Transaction, bool) {
	e, ok := c.entries.Get(txID)
	if !ok {
		return domain.Transaction{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx, e.tx.ID != ""
}

// MarkStatus records a transaction status learned elsewhere, e.g. after a
// cancel or an admin approval.
func (c *Coordinator) MarkStatus(txID string, st domain.TransactionStatus) {
	e := c.entry(txID)
	e.mu.Lock()
	e.tx.Status = st
	e.mu.Unlock()
}

// Refresh re-reads the transaction and contract.
func (c *Coordinator) Refresh(ctx context.Context, txID string) (domain.Transaction, domain.Contract, error) {
	tx, ct, err := c.api.Contract(ctx, txID)
	if err != nil {
		return tx, ct, err
	}
	ct = c.observe(ctx, txID, &tx, ct)
	return tx, ct, nil
}

// Sign adds the session's signature. A second signature by the same party is
// reported as errs.ErrAlreadySigned and leaves the state as it was.
func (c *Coordinator) Sign(ctx context.Context, txID string) (domain.Contract, error) {
	tx, known := c.Transaction(txID)
	if !known {
		var err error
		if tx, _, err = c.Refresh(ctx, txID); err != nil {
			return domain.Contract{}, err
		}
	}
	s := c.api.Session()
	party, ok := tx.PartyOf(s.UserID)
	if !ok {
		return domain.Contract{}, errs.Forbidden("sign contract", "not a party to transaction "+txID)
	}
	if tx.Status != domain.TransactionOpen {
		return domain.Contract{}, errs.TransactionClosed(txID)
	}
	if cur, _ := c.Contract(txID); cur.SignedBy(party) {
		return cur, errs.AlreadySigned(txID, string(party))
	}

	ct, err := c.api.SignContract(ctx, txID)
	switch {
	case errors.Is(err, errs.ErrAlreadySigned):
		// signed from another device; pick up the flag without flipping anything
		if _, cur, rerr := c.Refresh(ctx, txID); rerr == nil {
			return cur, err
		}
		cur, _ := c.Contract(txID)
		return cur, err
	case errors.Is(err, errs.ErrTransactionClosed):
		c.MarkStatus(txID, domain.TransactionCancelled)
		return domain.Contract{}, err
	case err != nil:
		return domain.Contract{}, err
	}

	applog.Audit(nil, "contract.sign", map[string]any{"user_id": s.UserID, "transaction_id": txID, "party": string(party)})
	events.Emit(ctx, c.pub, events.New(events.ContractSigned, txID, s.UserID, map[string]any{"party": string(party)}))
	return c.observe(ctx, txID, nil, ct), nil
}
