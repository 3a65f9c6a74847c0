package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBDSN     string
	LogFile   string
	PublicURL string

	JWTSecret string

	AMQPURL        string
	EventsExchange string

	SchedulerInterval time.Duration
	AuctionDuration   time.Duration

	// client side
	APIBaseURL   string
	Token        string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[warn] could not read .env: %v", err)
	}

	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:              port,
		DBDSN:             getEnv("DB_DSN", "evtrade.db"), // sqlite file in project root
		LogFile:           os.Getenv("LOG_FILE"),
		PublicURL:         getEnv("PUBLIC_URL", "http://localhost:"+port),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		EventsExchange:    getEnv("EVENTS_EXCHANGE", "evtrade_events"),
		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", time.Second),
		AuctionDuration:   getDuration("AUCTION_DURATION", time.Hour),
		APIBaseURL:        getEnv("EVTRADE_API", "http://localhost:"+port),
		Token:             os.Getenv("EVTRADE_TOKEN"),
		PollInterval:      getDuration("POLL_INTERVAL", 2*time.Second),
		PollTimeout:       getDuration("POLL_TIMEOUT", 30*time.Second),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s PUBLIC_URL=%s JWT_SECRET=%s AMQP_URL=%s POLL_INTERVAL=%s POLL_TIMEOUT=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.PublicURL, mask(cfg.JWTSecret), mask(cfg.AMQPURL), cfg.PollInterval, cfg.PollTimeout)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration accepts Go durations ("500ms") or plain seconds ("2").
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("[warn] bad duration %s=%q, using %s", key, v, def)
	return def
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
