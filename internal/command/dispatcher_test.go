package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/backendtest"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/command"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/lifecycle"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/payment"
)

func dispatcher(t *testing.T, b *backendtest.Backend, email string) *command.Dispatcher {
	t.Helper()
	return command.New(b.Login(t, email), command.Options{
		Navigator:    payment.NavigatorFunc(b.Gateway(0)),
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	})
}

func TestAuctionCommands(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	seller := dispatcher(t, b, backendtest.Seller)
	admin := dispatcher(t, b, backendtest.Admin)
	alice := dispatcher(t, b, backendtest.Alice)

	now := time.Now().UTC().Truncate(time.Second)
	end := now.Add(time.Hour)
	res, err := seller.Dispatch(ctx, command.CreateAuction{Request: client.CreateAuctionRequest{
		ResourceType: domain.ResourceVehicle,
		ResourceID:   "veh-cmd",
		StartTime:    now.Add(-time.Minute),
		EndTime:      &end,
		CurrentBid:   decimal.NewFromInt(500),
	}})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Auction.ID

	if _, err := seller.Dispatch(ctx, command.ReviewAuction{AuctionID: id, Approve: true}); err == nil {
		t.Fatal("seller must not review")
	}
	if _, err := admin.Dispatch(ctx, command.ReviewAuction{AuctionID: id, Approve: true}); err != nil {
		t.Fatal(err)
	}
	// Alice looks at the auction before the clock starts it.
	res, err = alice.Dispatch(ctx, command.RefreshAuction{AuctionID: id})
	if err != nil {
		t.Fatal(err)
	}
	if res.Auction.Status != domain.AuctionPrepare {
		t.Fatalf("expected prepare before the clock, got %s", res.Auction.Status)
	}
	b.Clock(t, now)

	res, err = alice.Dispatch(ctx, command.PlaceBid{AuctionID: id, Amount: decimal.NewFromInt(650)})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Auction.CurrentBid.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("current bid = %s", res.Auction.CurrentBid)
	}

	// The admin last saw prepare; the clock has moved it since.
	res, err = admin.Dispatch(ctx, command.FinalizeAuction{AuctionID: id})
	if err != nil {
		t.Fatal(err)
	}
	if res.Auction.Status != domain.AuctionEnded || res.Auction.Winner() != "u-buyer-a" {
		t.Fatalf("unexpected final auction %+v", res.Auction)
	}

	// Alice's view is still started; a refresh catches it up.
	res, err = alice.Dispatch(ctx, command.RefreshAuction{AuctionID: id})
	if err != nil {
		t.Fatal(err)
	}
	if res.Auction.Status != domain.AuctionEnded {
		t.Fatalf("refresh left status %s", res.Auction.Status)
	}
}

func TestSettlementCommands(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := dispatcher(t, b, backendtest.Alice)
	seller := dispatcher(t, b, backendtest.Seller)
	admin := dispatcher(t, b, backendtest.Admin)

	res, err := buyer.Dispatch(ctx, command.CreateTransaction{Request: client.CreateTransactionRequest{
		ListingID: "listing-cmd", SellerID: "u-seller", FinalPrice: decimal.NewFromInt(3000),
	}})
	if err != nil {
		t.Fatal(err)
	}
	txID := res.Transaction.ID
	if res.Stage != lifecycle.StageAwaitingSignatures {
		t.Fatalf("stage = %s", res.Stage)
	}

	for _, d := range []*command.Dispatcher{buyer, seller} {
		if _, err := d.Dispatch(ctx, command.SignContract{TransactionID: txID}); err != nil {
			t.Fatal(err)
		}
	}
	// The buyer's contract view is stale until refreshed.
	if _, err := buyer.Dispatch(ctx, command.ShowTransaction{TransactionID: txID}); err != nil {
		t.Fatal(err)
	}

	res, err = buyer.Dispatch(ctx, command.InitiatePayment{TransactionID: txID, Method: domain.MethodEWallet})
	if err != nil {
		t.Fatal(err)
	}
	if res.Payment.Status != domain.PaymentInitiated || !res.Payment.Amount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("unexpected payment %+v", res.Payment)
	}

	res, err = buyer.Dispatch(ctx, command.ConfirmPayment{TransactionID: txID, Method: domain.MethodEWallet})
	if err != nil {
		t.Fatal(err)
	}
	if res.PaymentURL == "" {
		t.Fatal("e-wallet confirm should return a gateway url")
	}

	res, err = buyer.Dispatch(ctx, command.PollPayment{TransactionID: txID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.PaymentPending || res.Stage != lifecycle.StageAwaitingApproval {
		t.Fatalf("after gateway: status %s stage %s", res.Status, res.Stage)
	}

	var fe *errs.ForbiddenError
	if _, err := buyer.Dispatch(ctx, command.ApprovePayment{TransactionID: txID}); !errors.As(err, &fe) {
		t.Fatalf("buyer approve: expected forbidden, got %v", err)
	}
	res, err = admin.Dispatch(ctx, command.ApprovePayment{TransactionID: txID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.PaymentCompleted {
		t.Fatalf("approve left %s", res.Status)
	}

	res, err = buyer.Dispatch(ctx, command.ShowTransaction{TransactionID: txID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != lifecycle.StageCompleted {
		t.Fatalf("final stage %s", res.Stage)
	}
	if _, err := buyer.Dispatch(ctx, command.CancelTransaction{TransactionID: txID}); err == nil {
		t.Fatal("cancel after completion should fail")
	}
}

func TestPurchaseCommand(t *testing.T) {
	ctx := context.Background()
	b := backendtest.New(t)
	buyer := dispatcher(t, b, backendtest.Alice)
	seller := dispatcher(t, b, backendtest.Seller)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tx, err := b.Deps.TransactionHandler.Txs.Tx.OpenForListing("listing-buy")
			if err == nil {
				seller.Dispatch(ctx, command.SignContract{TransactionID: tx.ID})
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	res, err := buyer.Dispatch(ctx, command.Purchase{
		Request: client.CreateTransactionRequest{ListingID: "listing-buy", SellerID: "u-seller", FinalPrice: decimal.NewFromInt(900)},
		Method:  domain.MethodCash,
	})
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != lifecycle.StageAwaitingApproval {
		t.Fatalf("cash purchase should await approval, got %s", res.Stage)
	}
}

type unknownCommand struct{}

func (unknownCommand) Name() string { return "unknown" }

func TestUnknownCommand(t *testing.T) {
	b := backendtest.New(t)
	d := command.New(b.Anonymous(), command.Options{})
	if _, err := d.Dispatch(context.Background(), unknownCommand{}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
