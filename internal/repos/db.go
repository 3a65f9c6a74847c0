package repos

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// timeLayout is how schedule and audit timestamps are stored: UTC RFC3339,
// which sorts lexically.
const timeLayout = time.RFC3339

func stamp(t time.Time) string { return t.UTC().Format(timeLayout) }

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Ensure users exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Users
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

-- Auctions
CREATE TABLE IF NOT EXISTS auctions(
  id TEXT PRIMARY KEY,
  resource_type TEXT NOT NULL CHECK (resource_type IN ('vehicle','battery')),
  resource_id TEXT NOT NULL,
  creator_id TEXT NOT NULL REFERENCES users(id),
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','prepare','started','ended','rejected')),
  current_bid NUMERIC NOT NULL CHECK (current_bid >= 0),
  winning_bidder_id TEXT NULL REFERENCES users(id),
  start_time TEXT NOT NULL,
  end_time TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status);
-- one live auction per resource
CREATE UNIQUE INDEX IF NOT EXISTS idx_auctions_live_resource
  ON auctions(resource_type, resource_id) WHERE status IN ('pending','prepare','started');

CREATE TABLE IF NOT EXISTS bids(
  id TEXT PRIMARY KEY,
  auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
  bidder_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  accepted INTEGER NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);

-- Transactions
CREATE TABLE IF NOT EXISTS transactions(
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  final_price NUMERIC NOT NULL CHECK (final_price > 0),
  status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','cancelled','completed')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT,
  CHECK (buyer_id <> seller_id)
);
-- at most one open transaction per listing
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_open_listing
  ON transactions(listing_id) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS contracts(
  transaction_id TEXT PRIMARY KEY REFERENCES transactions(id) ON DELETE CASCADE,
  term TEXT NOT NULL,
  signed_by_buyer INTEGER NOT NULL DEFAULT 0,
  signed_by_seller INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS payments(
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
  amount NUMERIC NOT NULL CHECK (amount > 0),
  method TEXT NOT NULL CHECK (method IN ('e-wallet','bank','cash')),
  status TEXT NOT NULL DEFAULT 'initiated' CHECK (status IN ('initiated','pending','completed','failed')),
  attempt INTEGER NOT NULL DEFAULT 1,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT,
  UNIQUE(transaction_id, attempt)
);
`
	_, err := db.Exec(schema)
	return err
}

// seedUsers makes sure the demo accounts exist. Password for all: Password123!
func seedUsers(db *sqlx.DB) error {
	users := []struct {
		id, email, name, role string
	}{
		{"u-admin", "admin@evtrade.local", "Admin", "ADMIN"},
		{"u-seller", "seller@evtrade.local", "Sam Seller", "USER"},
		{"u-buyer-a", "alice@evtrade.local", "Alice", "USER"},
		{"u-buyer-b", "bob@evtrade.local", "Bob", "USER"},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	tx := db.MustBegin()
	for _, u := range users {
		tx.MustExec(`
			INSERT OR IGNORE INTO users(id, email, name, password_hash, role)
			VALUES (?, ?, ?, ?, ?)
		`, u.id, u.email, u.name, string(hash), u.role)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[seed] ensured %d users", len(users))
	return nil
}
