package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/config"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/http/handlers"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
)

func newTestApp(t *testing.T, opts handlers.AppOptions) (*fiber.App, *handlers.Deps) {
	t.Helper()
	cfg := config.Config{DBDSN: ":memory:", JWTSecret: "test-secret", PublicURL: "http://gateway.test", AuctionDuration: time.Hour}
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	deps := handlers.NewDeps(db, cfg, nil)
	return handlers.NewApp(deps, opts), deps
}

// call sends a JSON request and decodes the JSON response body.
func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, body := call(t, app, "POST", "/user/api/login", "", map[string]string{"email": email, "password": "Password123!"})
	if status != fiber.StatusOK {
		t.Fatalf("login %s: status %d body %v", email, status, body)
	}
	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatalf("login %s: no token in %v", email, body)
	}
	return tok
}

// startedAuction creates an auction as the seed seller, approves it and lets
// the clock start it. It returns the auction id.
func startedAuction(t *testing.T, app *fiber.App, d *handlers.Deps, resourceID string) string {
	t.Helper()
	seller := login(t, app, "seller@evtrade.local")
	admin := login(t, app, "admin@evtrade.local")
	now := time.Now().UTC()
	status, body := call(t, app, "POST", "/auction/api/auctions", seller, map[string]any{
		"resource_type": "battery",
		"resource_id":   resourceID,
		"start_time":    now.Add(-time.Minute).Format(time.RFC3339),
		"end_time":      now.Add(time.Hour).Format(time.RFC3339),
		"current_bid":   "100",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create auction: %d %v", status, body)
	}
	id := body["auction_id"].(string)
	if status, body = call(t, app, "PUT", "/auction/api/admin/auctions/"+id+"/review", admin, map[string]any{"approve": true}); status != fiber.StatusOK {
		t.Fatalf("review: %d %v", status, body)
	}
	if started, _, err := d.Auctions.Tick(context.Background(), now); err != nil || started != 1 {
		t.Fatalf("tick: started=%d err=%v", started, err)
	}
	return id
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// capture logs by temporarily replacing the standard logger output
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0) // remove timestamps to make JSON parseable
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	mu.Lock()
	defer mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
