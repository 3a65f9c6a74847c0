package client

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type CreateAuctionRequest struct {
	ResourceType domain.ResourceType `json:"resource_type"`
	ResourceID   string              `json:"resource_id"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	CurrentBid   decimal.Decimal     `json:"current_bid"`
}

func (a *API) CreateAuction(ctx context.Context, req CreateAuctionRequest) (domain.Auction, error) {
	var out domain.Auction
	err := a.do(ctx, "POST", "/auction/api/auctions", req, &out)
	return out, err
}

func (a *API) Auction(ctx context.Context, id string) (domain.Auction, error) {
	var out domain.Auction
	err := a.do(ctx, "GET", "/auction/api/auctions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (a *API) Bid(ctx context.Context, auctionID string, amount decimal.Decimal) (domain.Auction, error) {
	var out domain.Auction
	err := a.do(ctx, "POST", "/auction/api/"+url.PathEscape(auctionID)+"/bid", map[string]any{"amount": amount}, &out)
	return out, err
}

func (a *API) ReviewAuction(ctx context.Context, auctionID string, approve bool) (domain.Auction, error) {
	var out domain.Auction
	err := a.do(ctx, "PUT", "/auction/api/admin/auctions/"+url.PathEscape(auctionID)+"/review", map[string]any{"approve": approve}, &out)
	return out, err
}

func (a *API) FinalizeAuction(ctx context.Context, auctionID string) (domain.Auction, error) {
	var out domain.Auction
	err := a.do(ctx, "PUT", "/auction/api/admin/auctions/"+url.PathEscape(auctionID)+"/finalize", nil, &out)
	return out, err
}

func (a *API) RemoveAuction(ctx context.Context, rt domain.ResourceType, resourceID string) error {
	return a.do(ctx, "DELETE", "/auction/api/auctions/"+url.PathEscape(string(rt))+"/"+url.PathEscape(resourceID), nil, nil)
}
