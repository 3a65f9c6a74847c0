package repos

import (
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, name, password_hash, role`

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// ByEmail matches case-insensitively.
func (r *UserRepo) ByEmail(email string) (*domain.User, error) {
	return r.one(`LOWER(email) = LOWER(?)`, email)
}

// ByID returns sql.ErrNoRows for an unknown or removed account.
func (r *UserRepo) ByID(id string) (*domain.User, error) {
	return r.one(`id = ?`, id)
}

func (r *UserRepo) one(where string, arg any) (*domain.User, error) {
	var u domain.User
	if err := r.DB.Get(&u, `SELECT `+userColumns+` FROM users WHERE `+where, arg); err != nil {
		return nil, err
	}
	return &u, nil
}
