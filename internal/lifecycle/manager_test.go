package lifecycle_test

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
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/lifecycle"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/payment"
)

func manager(b *backendtest.Backend, api *client.API, pub events.Publisher) *lifecycle.Manager {
	coord := contract.New(api, pub)
	pipe := payment.New(api, coord, payment.NavigatorFunc(b.Gateway(0)), pub).WithInterval(10 * time.Millisecond)
	return lifecycle.New(api, coord, pipe, pub).WithRefresh(10 * time.Millisecond)
}

func request(listing string, price int64) client.CreateTransactionRequest {
	return client.CreateTransactionRequest{ListingID: listing, SellerID: "u-seller", FinalPrice: decimal.NewFromInt(price)}
}

func TestContractRaceScenario(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	hub := events.NewHub()
	readyCh, stop := hub.Subscribe(64)
	defer stop()

	buyer := manager(b, b.Login(t, backendtest.Alice), hub)
	seller := manager(b, b.Login(t, backendtest.Seller), nil)

	tx, err := buyer.Create(ctx, request("listing-race", 2000))
	if err != nil {
		t.Fatal(err)
	}
	ct, err := buyer.Sign(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ct.SignedByBuyer || ct.SignedBySeller || buyer.Contracts().Status(tx.ID) != domain.ContractPartiallySigned {
		t.Fatalf("expected partially signed, got %+v", ct)
	}
	var ce *errs.ConflictError
	if _, err := buyer.Pay(ctx, tx.ID, domain.MethodBank); !errors.As(err, &ce) || ce.Code != errs.CodeContractNotReady {
		t.Fatalf("pay before seller signs: expected contract_not_ready, got %v", err)
	}
	if buyer.Stage(tx.ID) != lifecycle.StageAwaitingSignatures {
		t.Fatalf("unexpected stage %s", buyer.Stage(tx.ID))
	}

	if _, err := seller.Sign(ctx, tx.ID); err != nil {
		t.Fatalf("seller sign: %v", err)
	}
	advance, err := seller.AwaitReady(ctx, tx.ID)
	if err != nil || advance {
		t.Fatalf("seller should see ready without advancing: %v %v", advance, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	advance, err = buyer.AwaitReady(waitCtx, tx.ID)
	if err != nil || !advance {
		t.Fatalf("buyer should advance: %v %v", advance, err)
	}
	// more refreshes must not emit ready again
	for i := 0; i < 3; i++ {
		if _, err := buyer.Snapshot(ctx, tx.ID); err != nil {
			t.Fatal(err)
		}
	}
	readies := 0
	for drained := false; !drained; {
		select {
		case e := <-readyCh:
			if e.Kind == events.ContractReady {
				readies++
			}
		default:
			drained = true
		}
	}
	if readies != 1 {
		t.Fatalf("expected one ready event, got %d", readies)
	}

	pay, err := buyer.Pay(ctx, tx.ID, domain.MethodBank)
	if err != nil {
		t.Fatalf("pay after both signatures: %v", err)
	}
	if !pay.Amount.Equal(decimal.NewFromInt(2000)) || buyer.Stage(tx.ID) != lifecycle.StagePaymentInitiated {
		t.Fatalf("unexpected payment %+v stage %s", pay, buyer.Stage(tx.ID))
	}
	var fe *errs.ForbiddenError
	if _, err := seller.Pay(ctx, tx.ID, domain.MethodBank); !errors.As(err, &fe) {
		t.Fatalf("seller pay: expected forbidden, got %v", err)
	}
}

func TestPurchaseEndToEnd(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := manager(b, b.Login(t, backendtest.Alice), nil)
	seller := manager(b, b.Login(t, backendtest.Seller), nil)
	admin := manager(b, b.Login(t, backendtest.Admin), nil)

	// the seller signs as soon as the transaction shows up
	go func() {
		for i := 0; i < 200; i++ {
			tx, err := b.Deps.TransactionHandler.Txs.Tx.OpenForListing("listing-e2e")
			if err == nil {
				seller.Sign(ctx, tx.ID)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, stage, err := buyer.Purchase(runCtx, request("listing-e2e", 3100), domain.MethodEWallet, 2*time.Second)
	if err != nil {
		t.Fatalf("purchase: %v (stage %s)", err, stage)
	}
	// pending is not success yet
	if stage != lifecycle.StageAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", stage)
	}

	if _, err := admin.Payments().AdminApprove(ctx, tx.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	snap, err := buyer.Snapshot(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Stage != lifecycle.StageCompleted || snap.Payment != domain.PaymentCompleted || snap.Transaction.Status != domain.TransactionCompleted {
		t.Fatalf("unexpected final snapshot %+v", snap)
	}

	var ce *errs.ConflictError
	if err := buyer.Cancel(ctx, tx.ID); !errors.As(err, &ce) {
		t.Fatalf("cancel after completion: expected conflict, got %v", err)
	}
	if err := seller.Cancel(ctx, tx.ID); !errors.As(err, &ce) || ce.Code != errs.CodePaymentTerminal {
		t.Fatalf("seller cancel after completion: expected payment_terminal from server, got %v", err)
	}
}

func TestOneOpenTransactionPerListing(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := manager(b, b.Login(t, backendtest.Alice), nil)
	other := manager(b, b.Login(t, backendtest.Bob), nil)

	tx, err := buyer.Create(ctx, request("listing-once", 500))
	if err != nil {
		t.Fatal(err)
	}
	var ce *errs.ConflictError
	if _, err := buyer.Create(ctx, request("listing-once", 500)); !errors.As(err, &ce) || ce.Code != errs.CodeOpenTransaction {
		t.Fatalf("local guard: expected open_transaction_exists, got %v", err)
	}
	if _, err := other.Create(ctx, request("listing-once", 550)); !errors.As(err, &ce) || ce.Code != errs.CodeOpenTransaction {
		t.Fatalf("server guard: expected open_transaction_exists, got %v", err)
	}

	if err := buyer.Cancel(ctx, tx.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if buyer.Stage(tx.ID) != lifecycle.StageCancelled {
		t.Fatalf("expected cancelled stage, got %s", buyer.Stage(tx.ID))
	}
	if _, err := buyer.Create(ctx, request("listing-once", 500)); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}

	var ve *errs.ValidationError
	if _, err := buyer.Create(ctx, client.CreateTransactionRequest{ListingID: "l", SellerID: "u-buyer-a", FinalPrice: decimal.NewFromInt(1)}); !errors.As(err, &ve) {
		t.Fatalf("self dealing: expected validation error, got %v", err)
	}
	if _, err := buyer.Create(ctx, client.CreateTransactionRequest{ListingID: "l", SellerID: "u-seller"}); !errors.As(err, &ve) {
		t.Fatalf("zero price: expected validation error, got %v", err)
	}
}

func TestSignTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := manager(b, b.Login(t, backendtest.Alice), nil)
	tx, err := buyer.Create(ctx, request("listing-noop", 100))
	if err != nil {
		t.Fatal(err)
	}
	first, err := buyer.Sign(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := buyer.Sign(ctx, tx.ID)
	if err != nil {
		t.Fatalf("second sign should be swallowed, got %v", err)
	}
	if first != second {
		t.Fatalf("state changed: %+v vs %+v", first, second)
	}
}

func TestAwaitReadyStopsOnCancel(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := manager(b, b.Login(t, backendtest.Alice), nil)
	seller := manager(b, b.Login(t, backendtest.Seller), nil)
	tx, err := buyer.Create(ctx, request("listing-wait", 100))
	if err != nil {
		t.Fatal(err)
	}
	if err := seller.Cancel(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := buyer.AwaitReady(ctx, tx.ID); !errors.Is(err, errs.ErrTransactionClosed) {
		t.Fatalf("expected transaction closed, got %v", err)
	}

	tx2, err := buyer.Create(ctx, request("listing-wait-2", 100))
	if err != nil {
		t.Fatal(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := buyer.AwaitReady(waitCtx, tx2.ID); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
