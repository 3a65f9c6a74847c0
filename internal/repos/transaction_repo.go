package repos

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type TransactionRepo struct{ db *sqlx.DB }

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// Create inserts the transaction and its unsigned contract together.
func (r *TransactionRepo) Create(t domain.Transaction, term string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO transactions(id, listing_id, buyer_id, seller_id, final_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'open', ?)
	`, t.ID, t.ListingID, t.BuyerID, t.SellerID, t.FinalPrice, t.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO contracts(transaction_id, term, signed_by_buyer, signed_by_seller, updated_at)
		VALUES (?, ?, 0, 0, ?)
	`, t.ID, term, t.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TransactionRepo) Get(id string) (domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.Get(&t, `
		SELECT id, listing_id, buyer_id, seller_id, final_price, status, created_at
		FROM transactions WHERE id = ?
	`, id)
	return t, err
}

// OpenForListing returns the open transaction for a listing, if any.
func (r *TransactionRepo) OpenForListing(listingID string) (domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.Get(&t, `
		SELECT id, listing_id, buyer_id, seller_id, final_price, status, created_at
		FROM transactions WHERE listing_id = ? AND status = 'open'
	`, listingID)
	return t, err
}

func (r *TransactionRepo) Contract(txID string) (domain.Contract, error) {
	var c domain.Contract
	err := r.db.Get(&c, `
		SELECT transaction_id, term, signed_by_buyer, signed_by_seller
		FROM contracts WHERE transaction_id = ?
	`, txID)
	return c, err
}

// Sign sets the party's flag only if it is still unset and the transaction
// is open. It reports whether a flag was flipped.
func (r *TransactionRepo) Sign(txID string, party domain.Party) (bool, error) {
	col := "signed_by_seller"
	if party == domain.PartyBuyer {
		col = "signed_by_buyer"
	}
	res, err := r.db.Exec(`
		UPDATE contracts SET `+col+` = 1, updated_at = ?
		WHERE transaction_id = ? AND `+col+` = 0
		  AND EXISTS (SELECT 1 FROM transactions t WHERE t.id = contracts.transaction_id AND t.status = 'open')
	`, stamp(time.Now()), txID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// Cancel closes an open transaction and fails any payment attempt that is
// still in flight. It reports false when the transaction was not open or a
// payment already completed.
func (r *TransactionRepo) Cancel(txID string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	now := stamp(time.Now())
	res, err := tx.Exec(`
		UPDATE transactions SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'open'
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.transaction_id = transactions.id AND p.status = 'completed')
	`, now, txID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if _, err := tx.Exec(`
		UPDATE payments SET status = 'failed', updated_at = ?
		WHERE transaction_id = ? AND status IN ('initiated','pending')
	`, now, txID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *TransactionRepo) UpdateStatus(id string, status domain.TransactionStatus) error {
	_, err := r.db.Exec(`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?`, string(status), stamp(time.Now()), id)
	return err
}
