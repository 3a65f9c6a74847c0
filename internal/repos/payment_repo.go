package repos

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `id, transaction_id, amount, method, status, attempt, created_at`

// Create inserts an attempt in initiated. (transaction_id, attempt) is unique
// so two concurrent creates cannot both win.
func (r *PaymentRepo) Create(p domain.Payment) error {
	_, err := r.db.Exec(`
		INSERT INTO payments(`+paymentCols+`)
		VALUES (?, ?, ?, ?, 'initiated', ?, ?)
	`, p.ID, p.TransactionID, p.Amount, string(p.Method), p.Attempt, p.CreatedAt)
	return err
}

func (r *PaymentRepo) Get(id string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, id)
	return p, err
}

// Latest returns the newest attempt for a transaction.
func (r *PaymentRepo) Latest(txID string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `
		SELECT `+paymentCols+` FROM payments
		WHERE transaction_id = ?
		ORDER BY attempt DESC LIMIT 1
	`, txID)
	return p, err
}

// Move changes status only from one of the given states. It reports false when
// the payment had already left them.
func (r *PaymentRepo) Move(id string, to domain.PaymentStatus, from ...domain.PaymentStatus) (bool, error) {
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}
	q, args, err := sqlx.In(`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		string(to), stamp(time.Now()), id, src)
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

// SetMethod records the method chosen at confirmation time on an attempt that
// has not moved yet.
func (r *PaymentRepo) SetMethod(id string, m domain.PaymentMethod) error {
	_, err := r.db.Exec(`UPDATE payments SET method = ?, updated_at = ? WHERE id = ? AND status = 'initiated'`,
		string(m), stamp(time.Now()), id)
	return err
}

// ListByStatus is used by the admin approval queue.
func (r *PaymentRepo) ListByStatus(status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Payment
	err := r.db.Select(&out, `
		SELECT `+paymentCols+` FROM payments
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, string(status), limit)
	return out, err
}
