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

type AuctionService struct {
	Repo     *repos.AuctionRepo
	Events   events.Publisher
	Now      func() time.Time
	Duration time.Duration
}

func NewAuctionService(repo *repos.AuctionRepo, pub events.Publisher, duration time.Duration) *AuctionService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &AuctionService{Repo: repo, Events: pub, Now: time.Now, Duration: duration}
}

type CreateAuctionInput struct {
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	CurrentBid   decimal.Decimal `json:"current_bid"`
}

func (s *AuctionService) Create(actor Actor, in CreateAuctionInput) (domain.Auction, error) {
	rt, ok := validate.ResourceType(in.ResourceType)
	if !ok {
		return domain.Auction{}, invalid("resource_type must be vehicle or battery")
	}
	rid, ok := validate.ID(in.ResourceID)
	if !ok {
		return domain.Auction{}, invalid("invalid resource_id")
	}
	if !validate.Amount(in.CurrentBid) {
		return domain.Auction{}, invalid("current_bid must be a positive amount")
	}
	if in.StartTime.IsZero() {
		return domain.Auction{}, invalid("start_time is required")
	}
	end := in.StartTime.Add(s.Duration)
	if in.EndTime != nil {
		end = *in.EndTime
	}
	if !validate.Window(in.StartTime, end) {
		return domain.Auction{}, invalid("end_time must be after start_time")
	}

	a := domain.Auction{
		ID:           uuid.NewString(),
		ResourceType: rt,
		ResourceID:   rid,
		CreatorID:    actor.ID,
		Status:       domain.AuctionPending,
		CurrentBid:   in.CurrentBid,
		StartTime:    in.StartTime.UTC().Truncate(time.Second),
		EndTime:      end.UTC().Truncate(time.Second),
	}
	if err := s.Repo.Create(a); err != nil {
		if isUnique(err) {
			return domain.Auction{}, conflict(errs.CodeInvalidTransition, "resource already has a live auction", nil)
		}
		return domain.Auction{}, err
	}
	return a, nil
}

func (s *AuctionService) Get(id string) (domain.Auction, error) {
	a, err := s.Repo.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return a, notFound("auction not found")
	}
	return a, err
}

// Bid applies a bid and returns the stored snapshot. The database decides the
// race between concurrent bidders; the losers get bid_too_low with the
// current amount.
func (s *AuctionService) Bid(ctx context.Context, actor Actor, id string, amount decimal.Decimal) (domain.Auction, error) {
	if !validate.Amount(amount) {
		return domain.Auction{}, invalid("amount must be a positive amount")
	}
	a, err := s.Get(id)
	if err != nil {
		return a, err
	}
	if a.CreatorID == actor.ID {
		return domain.Auction{}, forbidden("sellers cannot bid on their own auction")
	}
	if a.Status != domain.AuctionStarted {
		return domain.Auction{}, conflict(errs.CodeInvalidTransition, "auction is "+string(a.Status)+", bidding is closed",
			map[string]any{"current": string(a.Status)})
	}

	accepted, err := s.Repo.PlaceBid(id, actor.ID, amount)
	if err != nil {
		return domain.Auction{}, err
	}
	if a, err = s.Get(id); err != nil {
		return a, err
	}
	if !accepted {
		s.publish(ctx, events.New(events.BidRejected, id, actor.ID, map[string]any{"amount": amount.String(), "current_bid": a.CurrentBid.String()}))
		if a.Status != domain.AuctionStarted {
			return domain.Auction{}, conflict(errs.CodeInvalidTransition, "auction is "+string(a.Status)+", bidding is closed",
				map[string]any{"current": string(a.Status)})
		}
		return domain.Auction{}, conflict(errs.CodeBidTooLow,
			fmt.Sprintf("bid must be greater than current (%s)", a.CurrentBid.String()),
			map[string]any{"current_bid": a.CurrentBid})
	}
	s.publish(ctx, events.New(events.BidAccepted, id, actor.ID, map[string]any{"amount": amount.String()}))
	return a, nil
}

// Review is the admin decision on a pending auction.
func (s *AuctionService) Review(ctx context.Context, actor Actor, id string, approve bool) (domain.Auction, error) {
	if !actor.IsAdmin() {
		return domain.Auction{}, forbidden("only admins review auctions")
	}
	to := domain.AuctionRejected
	if approve {
		to = domain.AuctionPrepare
	}
	a, err := s.move(id, to, domain.AuctionPending)
	if err != nil {
		return a, err
	}
	s.publish(ctx, events.New(events.AuctionReviewed, id, actor.ID, map[string]any{"status": string(a.Status)}))
	return a, nil
}

// Finalize ends a started auction now instead of waiting for end_time.
func (s *AuctionService) Finalize(ctx context.Context, actor Actor, id string) (domain.Auction, error) {
	if !actor.IsAdmin() {
		return domain.Auction{}, forbidden("only admins finalize auctions")
	}
	a, err := s.move(id, domain.AuctionEnded, domain.AuctionStarted)
	if err != nil {
		return a, err
	}
	s.publishEnded(ctx, a)
	return a, nil
}

// Remove deletes the live auction for a resource. Owners cannot pull an
// auction that is already taking bids; admins can.
func (s *AuctionService) Remove(actor Actor, resourceType, resourceID string) error {
	rt, ok := validate.ResourceType(resourceType)
	if !ok {
		return invalid("resource_type must be vehicle or battery")
	}
	a, err := s.Repo.LatestByResource(rt, resourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("resource is not auctioned")
	}
	if err != nil {
		return err
	}
	if a.CreatorID != actor.ID && !actor.IsAdmin() {
		return forbidden("only the owner can remove this auction")
	}
	if a.Status == domain.AuctionStarted && !actor.IsAdmin() {
		return conflict(errs.CodeInvalidTransition, "auction has started and can no longer be removed by its owner",
			map[string]any{"current": string(a.Status)})
	}
	return s.Repo.Delete(a.ID)
}

// Tick applies the time-driven transitions due at now.
func (s *AuctionService) Tick(ctx context.Context, now time.Time) (started, ended int, err error) {
	ids, err := s.Repo.DueForStart(now)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if ok, err := s.Repo.Move(id, domain.AuctionStarted, domain.AuctionPrepare); err != nil {
			return started, ended, err
		} else if ok {
			started++
		}
	}
	if ids, err = s.Repo.DueForEnd(now); err != nil {
		return started, ended, err
	}
	for _, id := range ids {
		ok, err := s.Repo.Move(id, domain.AuctionEnded, domain.AuctionStarted)
		if err != nil {
			return started, ended, err
		}
		if !ok {
			continue
		}
		ended++
		if a, err := s.Repo.Get(id); err == nil {
			s.publishEnded(ctx, a)
		}
	}
	return started, ended, nil
}

func (s *AuctionService) move(id string, to domain.AuctionStatus, from ...domain.AuctionStatus) (domain.Auction, error) {
	moved, err := s.Repo.Move(id, to, from...)
	if err != nil {
		return domain.Auction{}, err
	}
	a, err := s.Get(id)
	if err != nil {
		return a, err
	}
	if !moved {
		return domain.Auction{}, badTransition("auction", string(a.Status), string(to))
	}
	return a, nil
}

func (s *AuctionService) publishEnded(ctx context.Context, a domain.Auction) {
	s.publish(ctx, events.New(events.AuctionEnded, a.ID, "", map[string]any{
		"winning_bidder_id": a.Winner(),
		"final_bid":         a.CurrentBid.String(),
	}))
}

func (s *AuctionService) publish(ctx context.Context, e events.Event) {
	events.Emit(ctx, s.Events, e)
}
