package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("EVTRADE_API", "")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("want port 9090, got %s", cfg.Port)
	}
	if cfg.APIBaseURL != "http://localhost:9090" {
		t.Fatalf("api base should follow port, got %s", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("default poll interval should be 2s, got %s", cfg.PollInterval)
	}
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("POLL_TIMEOUT", "45")
	if got := getDuration("POLL_TIMEOUT", time.Second); got != 45*time.Second {
		t.Fatalf("plain seconds: got %s", got)
	}
	t.Setenv("POLL_TIMEOUT", "250ms")
	if got := getDuration("POLL_TIMEOUT", time.Second); got != 250*time.Millisecond {
		t.Fatalf("go duration: got %s", got)
	}
	t.Setenv("POLL_TIMEOUT", "soon")
	if got := getDuration("POLL_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("garbage should fall back, got %s", got)
	}
}
