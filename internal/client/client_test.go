package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/backendtest"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

type stubDoer struct {
	status int
	body   string
	err    error
	last   *http.Request
}

func (s *stubDoer) Do(r *http.Request) (*http.Response, error) {
	s.last = r
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{StatusCode: s.status, Body: io.NopCloser(strings.NewReader(s.body)), Header: http.Header{}}, nil
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		doer  *stubDoer
		check func(error) bool
	}{
		{"bid too low", &stubDoer{status: 409, body: `{"error":"bid must be greater than current (1200)","code":"bid_too_low","current_bid":"1200"}`},
			func(err error) bool {
				var ce *errs.ConflictError
				return errors.Is(err, errs.ErrBidTooLow) && errors.As(err, &ce) &&
					ce.CurrentBid.Equal(decimal.NewFromInt(1200)) && err.Error() == "bid too low, current is 1200"
			}},
		{"already signed", &stubDoer{status: 409, body: `{"error":"buyer already signed","code":"already_signed"}`},
			func(err error) bool { return errors.Is(err, errs.ErrAlreadySigned) }},
		{"closed", &stubDoer{status: 409, body: `{"error":"transaction is cancelled","code":"transaction_closed"}`},
			func(err error) bool { return errors.Is(err, errs.ErrTransactionClosed) }},
		{"transition", &stubDoer{status: 409, body: `{"error":"cannot","code":"invalid_transition","current":"ended","attempted":"prepare"}`},
			func(err error) bool {
				var ce *errs.ConflictError
				return errors.As(err, &ce) && ce.Current == "ended" && ce.Attempted == "prepare"
			}},
		{"forbidden", &stubDoer{status: 403, body: `{"error":"admin only","code":"forbidden"}`},
			func(err error) bool {
				var fe *errs.ForbiddenError
				return errors.As(err, &fe) && fe.Reason == "admin only"
			}},
		{"validation", &stubDoer{status: 400, body: `{"error":"invalid amount","code":"invalid"}`},
			func(err error) bool {
				var ve *errs.ValidationError
				return errors.As(err, &ve)
			}},
		{"not found", &stubDoer{status: 404, body: `{"error":"auction not found"}`},
			func(err error) bool { return errs.IsNotFound(err) && !errs.Retryable(err) }},
		{"unauthorized", &stubDoer{status: 401, body: `{"error":"missing bearer token"}`},
			client.IsUnauthorized},
		{"bad gateway html", &stubDoer{status: 502, body: `<html>bad gateway</html>`},
			func(err error) bool {
				var te *errs.TransportError
				return errors.As(err, &te) && te.Status == 502 && errs.Retryable(err) && strings.Contains(te.Message, "bad gateway")
			}},
		{"network", &stubDoer{err: errors.New("connection refused")},
			func(err error) bool {
				var te *errs.TransportError
				return errors.As(err, &te) && te.Status == 0 && errs.Retryable(err)
			}},
	}
	for _, tc := range cases {
		api := client.New("http://x", tc.doer, nil)
		_, err := api.Bid(ctx, "a1", decimal.NewFromInt(1))
		if err == nil || !tc.check(err) {
			t.Fatalf("%s: unexpected error %T %v", tc.name, err, err)
		}
	}
}

func TestBearerHeaderFollowsSession(t *testing.T) {
	d := &stubDoer{status: 200, body: `{"status":"pending"}`}
	api := client.New("http://x/", d, nil)
	if _, err := api.PaymentStatus(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if h := d.last.Header.Get("Authorization"); h != "" {
		t.Fatalf("anonymous request should carry no bearer, got %q", h)
	}
	if d.last.URL.String() != "http://x/transaction/api/transactions/t1/payment-status" {
		t.Fatalf("unexpected url %s", d.last.URL)
	}

	s := &session.Session{Token: "tok", UserID: "u1", Role: "USER"}
	if _, err := api.As(s).PaymentStatus(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if h := d.last.Header.Get("Authorization"); h != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", h)
	}
}

func TestLoginAgainstBackend(t *testing.T) {
	b := backendtest.New(t)
	ctx := context.Background()

	if _, err := b.Anonymous().Login(ctx, backendtest.Alice, "nope-nope-nope"); !client.IsUnauthorized(err) {
		t.Fatalf("bad password should be unauthorized, got %v", err)
	}
	api := b.Login(t, backendtest.Admin)
	if !api.Session().IsAdmin() || api.Session().UserID != "u-admin" {
		t.Fatalf("unexpected admin session %s", api.Session())
	}
	if _, err := api.PaymentQueue(ctx, ""); err != nil {
		t.Fatalf("admin queue: %v", err)
	}
	if _, err := b.Anonymous().Auction(ctx, "whatever"); !client.IsUnauthorized(err) {
		t.Fatalf("anonymous read should be unauthorized, got %v", err)
	}
}
