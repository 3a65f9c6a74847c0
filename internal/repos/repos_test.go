package repos_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
)

func memdb(t *testing.T) *repos.AuctionRepo {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repos.NewAuctionRepo(db)
}

func TestAuctionBidIsConditional(t *testing.T) {
	ar := memdb(t)
	now := time.Now()
	a := domain.Auction{
		ID:           "a-1",
		ResourceType: domain.ResourceBattery,
		ResourceID:   "bat-1",
		CreatorID:    "u-seller",
		CurrentBid:   decimal.NewFromInt(1000),
		StartTime:    now,
		EndTime:      now.Add(time.Hour),
	}
	if err := ar.Create(a); err != nil {
		t.Fatal(err)
	}

	// not started yet
	ok, err := ar.PlaceBid("a-1", "u-buyer-a", decimal.NewFromInt(1200))
	if err != nil || ok {
		t.Fatalf("bid on pending auction must not apply: ok=%v err=%v", ok, err)
	}

	if moved, err := ar.Move("a-1", domain.AuctionPrepare, domain.AuctionPending); err != nil || !moved {
		t.Fatalf("approve: %v %v", moved, err)
	}
	if moved, _ := ar.Move("a-1", domain.AuctionPrepare, domain.AuctionPending); moved {
		t.Fatal("second approve must not move")
	}
	ids, err := ar.DueForStart(now.Add(time.Second))
	if err != nil || len(ids) != 1 {
		t.Fatalf("due for start: %v %v", ids, err)
	}
	if _, err := ar.Move("a-1", domain.AuctionStarted, domain.AuctionPrepare); err != nil {
		t.Fatal(err)
	}

	if ok, _ := ar.PlaceBid("a-1", "u-buyer-a", decimal.NewFromInt(1200)); !ok {
		t.Fatal("1200 over 1000 should be accepted")
	}
	if ok, _ := ar.PlaceBid("a-1", "u-buyer-b", decimal.NewFromInt(1100)); ok {
		t.Fatal("1100 under 1200 must be rejected")
	}
	if ok, _ := ar.PlaceBid("a-1", "u-buyer-b", decimal.NewFromInt(1200)); ok {
		t.Fatal("equal bid must be rejected")
	}

	got, err := ar.Get("a-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CurrentBid.Equal(decimal.NewFromInt(1200)) || got.Winner() != "u-buyer-a" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	bids, _ := ar.Bids("a-1")
	if len(bids) != 4 {
		t.Fatalf("every attempt is recorded, want 4 got %d", len(bids))
	}
}
