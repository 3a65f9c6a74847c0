package contract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/backendtest"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/contract"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
)

func openTx(t *testing.T, api *client.API, listing string) (domain.Transaction, domain.Contract) {
	t.Helper()
	tx, ct, err := api.CreateTransaction(context.Background(), client.CreateTransactionRequest{
		ListingID: listing, SellerID: "u-seller", FinalPrice: decimal.NewFromInt(900),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx, ct
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestSignTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := b.Login(t, backendtest.Alice)
	tx, ct := openTx(t, buyer, "listing-sign")

	c := contract.New(buyer, nil)
	c.Track(ctx, tx, ct)
	if c.Status(tx.ID) != domain.ContractUnsigned {
		t.Fatalf("expected unsigned, got %s", c.Status(tx.ID))
	}
	first, err := c.Sign(ctx, tx.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first.Status() != domain.ContractPartiallySigned || !first.SignedByBuyer {
		t.Fatalf("unexpected contract %+v", first)
	}

	second, err := c.Sign(ctx, tx.ID)
	if !errors.Is(err, errs.ErrAlreadySigned) {
		t.Fatalf("second sign: expected already signed, got %v", err)
	}
	if second != first {
		t.Fatalf("second sign changed state: %+v vs %+v", second, first)
	}

	// another device for the same buyer does not know about the first signature
	other := contract.New(buyer, nil)
	if _, err := other.Sign(ctx, tx.ID); !errors.Is(err, errs.ErrAlreadySigned) {
		t.Fatalf("server-side duplicate: expected already signed, got %v", err)
	}
	if got, _ := other.Contract(tx.ID); !got.SignedByBuyer || got.SignedBySeller {
		t.Fatalf("refreshed flags wrong: %+v", got)
	}
	_, server, err := buyer.Contract(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !server.SignedByBuyer || server.SignedBySeller {
		t.Fatalf("server flags wrong after duplicate signs: %+v", server)
	}
}

func TestReadyFiresOnce(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := b.Login(t, backendtest.Alice)
	seller := b.Login(t, backendtest.Seller)
	tx, ct := openTx(t, buyer, "listing-ready")

	hub := events.NewHub()
	ch, cancel := hub.Subscribe(32)
	defer cancel()

	bc := contract.New(buyer, hub)
	bc.Track(ctx, tx, ct)
	if _, err := bc.Sign(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if isClosed(bc.Ready(tx.ID)) {
		t.Fatal("ready after one signature")
	}

	sc := contract.New(seller, nil)
	got, err := sc.Sign(ctx, tx.ID)
	if err != nil {
		t.Fatalf("seller sign: %v", err)
	}
	if got.Status() != domain.ContractReady || !isClosed(sc.Ready(tx.ID)) {
		t.Fatalf("seller view should be ready: %+v", got)
	}

	for i := 0; i < 3; i++ {
		if _, _, err := bc.Refresh(ctx, tx.ID); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-bc.Ready(tx.ID):
	case <-time.After(time.Second):
		t.Fatal("buyer never saw ready")
	}

	readies := 0
	for done := false; !done; {
		select {
		case e := <-ch:
			if e.Kind == events.ContractReady {
				readies++
			}
		default:
			done = true
		}
	}
	if readies != 1 {
		t.Fatalf("expected exactly one ready event, got %d", readies)
	}
}

func TestSignRules(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := b.Login(t, backendtest.Alice)
	seller := b.Login(t, backendtest.Seller)
	tx, ct := openTx(t, buyer, "listing-rules")

	var fe *errs.ForbiddenError
	if _, err := contract.New(b.Login(t, backendtest.Bob), nil).Sign(ctx, tx.ID); !errors.As(err, &fe) {
		t.Fatalf("stranger: expected forbidden, got %v", err)
	}

	sc := contract.New(seller, nil)
	sc.Track(ctx, tx, ct)
	if err := buyer.CancelTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// the seller's copy still says open, so the server has to say no
	if _, err := sc.Sign(ctx, tx.ID); !errors.Is(err, errs.ErrTransactionClosed) {
		t.Fatalf("expected transaction closed, got %v", err)
	}
	if got, _ := sc.Transaction(tx.ID); got.Status != domain.TransactionCancelled {
		t.Fatalf("local status not updated: %s", got.Status)
	}
	if _, err := sc.Sign(ctx, tx.ID); !errors.Is(err, errs.ErrTransactionClosed) {
		t.Fatalf("second attempt: expected transaction closed, got %v", err)
	}
}
