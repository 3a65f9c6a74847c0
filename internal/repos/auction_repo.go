package repos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type AuctionRepo struct{ db *sqlx.DB }

func NewAuctionRepo(db *sqlx.DB) *AuctionRepo { return &AuctionRepo{db: db} }

type auctionRow struct {
	ID              string          `db:"id"`
	ResourceType    string          `db:"resource_type"`
	ResourceID      string          `db:"resource_id"`
	CreatorID       string          `db:"creator_id"`
	Status          string          `db:"status"`
	CurrentBid      decimal.Decimal `db:"current_bid"`
	WinningBidderID *string         `db:"winning_bidder_id"`
	StartTime       string          `db:"start_time"`
	EndTime         string          `db:"end_time"`
}

func (r auctionRow) toDomain() domain.Auction {
	start, _ := time.Parse(timeLayout, r.StartTime)
	end, _ := time.Parse(timeLayout, r.EndTime)
	return domain.Auction{
		ID:              r.ID,
		ResourceType:    domain.ResourceType(r.ResourceType),
		ResourceID:      r.ResourceID,
		CreatorID:       r.CreatorID,
		Status:          domain.AuctionStatus(r.Status),
		CurrentBid:      r.CurrentBid,
		WinningBidderID: r.WinningBidderID,
		StartTime:       start,
		EndTime:         end,
	}
}

const auctionCols = `id, resource_type, resource_id, creator_id, status, current_bid, winning_bidder_id, start_time, end_time`

// Create inserts a new auction in pending.
func (r *AuctionRepo) Create(a domain.Auction) error {
	_, err := r.db.Exec(`
		INSERT INTO auctions(`+auctionCols+`, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?, NULL, ?, ?, ?)
	`, a.ID, string(a.ResourceType), a.ResourceID, a.CreatorID, a.CurrentBid, stamp(a.StartTime), stamp(a.EndTime), stamp(time.Now()))
	return err
}

func (r *AuctionRepo) Get(id string) (domain.Auction, error) {
	var row auctionRow
	if err := r.db.Get(&row, `SELECT `+auctionCols+` FROM auctions WHERE id = ?`, id); err != nil {
		return domain.Auction{}, err
	}
	return row.toDomain(), nil
}

// LatestByResource returns the newest auction for a resource, preferring one
// that is not yet terminal.
func (r *AuctionRepo) LatestByResource(rt domain.ResourceType, resourceID string) (domain.Auction, error) {
	var row auctionRow
	err := r.db.Get(&row, `
		SELECT `+auctionCols+` FROM auctions
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY CASE WHEN status IN ('pending','prepare','started') THEN 0 ELSE 1 END, created_at DESC
		LIMIT 1
	`, string(rt), resourceID)
	if err != nil {
		return domain.Auction{}, err
	}
	return row.toDomain(), nil
}

// PlaceBid raises current_bid atomically when the auction is started and the
// amount beats the stored bid. The attempt is recorded either way.
func (r *AuctionRepo) PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE auctions
		SET current_bid = ?, winning_bidder_id = ?, updated_at = ?
		WHERE id = ? AND status = 'started' AND current_bid < CAST(? AS REAL)
	`, amount, bidderID, stamp(time.Now()), auctionID, amount)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	accepted := n == 1

	if _, err := tx.Exec(`
		INSERT INTO bids(id, auction_id, bidder_id, amount, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), auctionID, bidderID, amount, accepted, stamp(time.Now())); err != nil {
		return false, err
	}
	return accepted, tx.Commit()
}

func (r *AuctionRepo) Bids(auctionID string) ([]domain.Bid, error) {
	var out []domain.Bid
	err := r.db.Select(&out, `
		SELECT id, auction_id, bidder_id, amount, accepted, created_at
		FROM bids WHERE auction_id = ?
		ORDER BY created_at, rowid
	`, auctionID)
	return out, err
}

// Move switches status from one of the given states to "to". It reports
// false when the auction was not in any of them.
func (r *AuctionRepo) Move(id string, to domain.AuctionStatus, from ...domain.AuctionStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("move %s: no source states", id)
	}
	q, args, err := sqlx.In(`UPDATE auctions SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		string(to), stamp(time.Now()), id, statusStrings(from))
	if err != nil {
		return false, err
	}
	res, err := r.db.Exec(r.db.Rebind(q), args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DueForStart lists prepare auctions whose start time has passed.
func (r *AuctionRepo) DueForStart(now time.Time) ([]string, error) {
	var ids []string
	err := r.db.Select(&ids, `SELECT id FROM auctions WHERE status = 'prepare' AND start_time <= ?`, stamp(now))
	return ids, err
}

// DueForEnd lists started auctions whose end time has passed.
func (r *AuctionRepo) DueForEnd(now time.Time) ([]string, error) {
	var ids []string
	err := r.db.Select(&ids, `SELECT id FROM auctions WHERE status = 'started' AND end_time <= ?`, stamp(now))
	return ids, err
}

func (r *AuctionRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM auctions WHERE id = ?`, id)
	return err
}

func statusStrings(ss []domain.AuctionStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
