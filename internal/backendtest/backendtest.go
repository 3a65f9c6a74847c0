// Package backendtest runs the reference backend in-process for client tests.
// Requests go straight into the fiber app without a listener.
package backendtest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/config"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/http/handlers"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
)

const BaseURL = "http://evtrade.test"

// Seeded accounts; all share the password below.
const (
	Admin    = "admin@evtrade.local"
	Seller   = "seller@evtrade.local"
	Alice    = "alice@evtrade.local"
	Bob      = "bob@evtrade.local"
	Password = "Password123!"
)

type Backend struct {
	App  *fiber.App
	Deps *handlers.Deps
	DB   *sqlx.DB
	Hub  *events.Hub
}

func New(t testing.TB) *Backend {
	t.Helper()
	cfg := config.Config{
		DBDSN:           ":memory:",
		JWTSecret:       "backendtest-secret",
		PublicURL:       BaseURL,
		AuctionDuration: time.Hour,
	}
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	hub := events.NewHub()
	deps := handlers.NewDeps(db, cfg, hub)
	return &Backend{App: handlers.NewApp(deps, handlers.AppOptions{}), Deps: deps, DB: db, Hub: hub}
}

// Do implements client.Doer.
func (b *Backend) Do(r *http.Request) (*http.Response, error) {
	return b.App.Test(r, -1)
}

func (b *Backend) Anonymous() *client.API { return client.New(BaseURL, b, nil) }

// Login returns a client bound to a seeded account.
func (b *Backend) Login(t testing.TB, email string) *client.API {
	t.Helper()
	s, err := b.Anonymous().Login(context.Background(), email, Password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return client.New(BaseURL, b, s)
}

// Clock applies the auction transitions due at now.
func (b *Backend) Clock(t testing.TB, now time.Time) {
	t.Helper()
	if _, _, err := b.Deps.Auctions.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

// Gateway returns a navigator body that "visits" the payment page and
// reports resultCode, the way the provider's page would.
func (b *Backend) Gateway(resultCode int) func(ctx context.Context, paymentURL string) error {
	return func(ctx context.Context, paymentURL string) error {
		u, err := url.Parse(paymentURL)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("result", strconv.Itoa(resultCode))
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := b.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}
