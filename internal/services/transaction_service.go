package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/validate"
)

type TransactionService struct {
	Tx     *repos.TransactionRepo
	Events events.Publisher
}

func NewTransactionService(tx *repos.TransactionRepo, pub events.Publisher) *TransactionService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &TransactionService{Tx: tx, Events: pub}
}

type CreateTransactionInput struct {
	ListingID  string          `json:"listing_id"`
	AuctionID  string          `json:"auction_id,omitempty"`
	SellerID   string          `json:"seller_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// Create opens a transaction for the calling buyer together with its contract.
func (s *TransactionService) Create(actor Actor, in CreateTransactionInput) (domain.Transaction, domain.Contract, error) {
	listing := in.ListingID
	if listing == "" {
		// auction wins are keyed by the auction id
		listing = in.AuctionID
	}
	listing, ok := validate.ID(listing)
	if !ok {
		return domain.Transaction{}, domain.Contract{}, invalid("listing_id or auction_id is required")
	}
	seller, ok := validate.ID(in.SellerID)
	if !ok {
		return domain.Transaction{}, domain.Contract{}, invalid("seller_id is required")
	}
	if seller == actor.ID {
		return domain.Transaction{}, domain.Contract{}, invalid("buyer and seller must differ")
	}
	if !validate.Amount(in.FinalPrice) {
		return domain.Transaction{}, domain.Contract{}, invalid("final_price must be a positive amount")
	}
	if open, err := s.Tx.OpenForListing(listing); err == nil {
		return domain.Transaction{}, domain.Contract{}, conflict(errs.CodeOpenTransaction,
			"listing already has an open transaction", map[string]any{"transaction_id": open.ID})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.Contract{}, err
	}

	t := domain.Transaction{
		ID:         uuid.NewString(),
		ListingID:  listing,
		BuyerID:    actor.ID,
		SellerID:   seller,
		FinalPrice: in.FinalPrice,
		Status:     domain.TransactionOpen,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	term := fmt.Sprintf("Buyer %s agrees to purchase %s from seller %s for %s. Payment follows once both parties have signed.",
		t.BuyerID, t.ListingID, t.SellerID, t.FinalPrice.StringFixed(2))
	if err := s.Tx.Create(t, term); err != nil {
		if isUnique(err) {
			return domain.Transaction{}, domain.Contract{}, conflict(errs.CodeOpenTransaction, "listing already has an open transaction", nil)
		}
		return domain.Transaction{}, domain.Contract{}, err
	}
	return t, domain.Contract{TransactionID: t.ID, Term: term}, nil
}

// load returns the transaction if actor is a party to it (admins see all).
func (s *TransactionService) load(actor Actor, txID string) (domain.Transaction, domain.Party, error) {
	t, err := s.Tx.Get(txID)
	if errors.Is(err, sql.ErrNoRows) {
		return t, "", notFound("transaction not found")
	}
	if err != nil {
		return t, "", err
	}
	party, ok := t.PartyOf(actor.ID)
	if !ok && !actor.IsAdmin() {
		return t, "", forbidden("not a party to this transaction")
	}
	return t, party, nil
}

func (s *TransactionService) Contract(actor Actor, txID string) (domain.Transaction, domain.Contract, error) {
	t, _, err := s.load(actor, txID)
	if err != nil {
		return t, domain.Contract{}, err
	}
	c, err := s.Tx.Contract(txID)
	return t, c, err
}

// Sign flips the caller's signature flag exactly once.
func (s *TransactionService) Sign(ctx context.Context, actor Actor, txID string) (domain.Contract, error) {
	t, party, err := s.load(actor, txID)
	if err != nil {
		return domain.Contract{}, err
	}
	if party == "" {
		return domain.Contract{}, forbidden("only the buyer or seller can sign")
	}
	if t.Status != domain.TransactionOpen {
		return domain.Contract{}, conflict(errs.CodeTransactionClosed, "transaction is "+string(t.Status), nil)
	}
	flipped, err := s.Tx.Sign(txID, party)
	if err != nil {
		return domain.Contract{}, err
	}
	c, err := s.Tx.Contract(txID)
	if err != nil {
		return c, err
	}
	if !flipped {
		if c.SignedBy(party) {
			return c, conflict(errs.CodeAlreadySigned, string(party)+" already signed", nil)
		}
		return c, conflict(errs.CodeTransactionClosed, "transaction was closed", nil)
	}
	s.publish(ctx, events.New(events.ContractSigned, txID, actor.ID, map[string]any{"party": string(party)}))
	if c.Status() == domain.ContractReady {
		s.publish(ctx, events.New(events.ContractReady, txID, actor.ID, nil))
	}
	return c, nil
}

// Cancel closes an open transaction unless its payment already completed.
func (s *TransactionService) Cancel(ctx context.Context, actor Actor, txID string) error {
	t, party, err := s.load(actor, txID)
	if err != nil {
		return err
	}
	if party == "" && !actor.IsAdmin() {
		return forbidden("only the buyer or seller can cancel")
	}
	ok, err := s.Tx.Cancel(txID)
	if err != nil {
		return err
	}
	if !ok {
		if t, err = s.Tx.Get(txID); err != nil {
			return err
		}
		if t.Status == domain.TransactionCancelled {
			return conflict(errs.CodeTransactionClosed, "transaction already cancelled", nil)
		}
		return conflict(errs.CodePaymentTerminal, "payment already completed, transaction cannot be cancelled", nil)
	}
	s.publish(ctx, events.New(events.TxCancelled, txID, actor.ID, nil))
	return nil
}

func (s *TransactionService) publish(ctx context.Context, e events.Event) {
	events.Emit(ctx, s.Events, e)
}
