package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionPending  AuctionStatus = "pending"
	AuctionPrepare  AuctionStatus = "prepare"
	AuctionStarted  AuctionStatus = "started"
	AuctionEnded    AuctionStatus = "ended"
	AuctionRejected AuctionStatus = "rejected"
)

// Terminal reports whether no further workflow transition can leave s.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionRejected
}

func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionPending, AuctionPrepare, AuctionStarted, AuctionEnded, AuctionRejected:
		return true
	}
	return false
}

type ResourceType string

const (
	ResourceVehicle ResourceType = "vehicle"
	ResourceBattery ResourceType = "battery"
)

type Auction struct {
	ID              string          `json:"auction_id"`
	ResourceType    ResourceType    `json:"resource_type"`
	ResourceID      string          `json:"resource_id"`
	CreatorID       string          `json:"creator_id"`
	Status          AuctionStatus   `json:"status"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	WinningBidderID *string         `json:"winning_bidder_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
}

// Winner returns the winning bidder id or "" when no bid was accepted.
func (a Auction) Winner() string {
	if a.WinningBidderID == nil {
		return ""
	}
	return *a.WinningBidderID
}

type Bid struct {
	ID        string          `db:"id" json:"bid_id"`
	AuctionID string          `db:"auction_id" json:"auction_id"`
	BidderID  string          `db:"bidder_id" json:"bidder_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Accepted  bool            `db:"accepted" json:"accepted"`
	CreatedAt string          `db:"created_at" json:"created_at,omitempty"`
}
