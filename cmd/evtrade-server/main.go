package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/config"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/http/handlers"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var pub events.Publisher = events.Log{}
	if cfg.AMQPURL != "" {
		mq, err := events.DialAMQP(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			log.Fatal(err)
		}
		defer mq.Close()
		pub = events.Multi(events.Log{}, mq)
	}

	deps := handlers.NewDeps(db, cfg, pub)
	app := handlers.NewApp(deps, handlers.AppOptions{
		AccessLog:  true,
		RateLimit:  60,
		LoginLimit: 5,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Auctions.RunScheduler(ctx, cfg.SchedulerInterval)
		return nil
	})
	g.Go(func() error {
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("[server] shutting down")
		return app.Shutdown()
	})
	if err := g.Wait(); err != nil {
		log.Printf("[server] %v", err)
	}
}
