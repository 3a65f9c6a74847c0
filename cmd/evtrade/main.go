package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/command"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/config"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/payment"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

func main() {
	cfg := config.Load()

	app := &cli.App{
		Name:  "evtrade",
		Usage: "bid on EV auctions and settle purchases",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Value: cfg.APIBaseURL, Usage: "backend base URL"},
			&cli.StringFlag{Name: "token", Value: cfg.Token, Usage: "bearer token from `evtrade login`"},
			&cli.DurationFlag{Name: "poll-interval", Value: cfg.PollInterval},
			&cli.DurationFlag{Name: "poll-timeout", Value: cfg.PollTimeout},
		},
		Commands: []*cli.Command{
			cmdLogin,
			cmdAuction,
			cmdTransaction,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func apiFor(cctx *cli.Context) (*client.API, error) {
	s := session.Anonymous()
	if tok := cctx.String("token"); tok != "" {
		var err error
		if s, err = session.New(tok); err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
	}
	return client.New(cctx.String("api"), nil, s), nil
}

func dispatch(cctx *cli.Context, cmd command.Command) error {
	api, err := apiFor(cctx)
	if err != nil {
		return err
	}
	d := command.New(api, command.Options{
		Navigator: payment.NavigatorFunc(func(_ context.Context, url string) error {
			fmt.Fprintf(cctx.App.ErrWriter, "open to pay: %s\n", url)
			return nil
		}),
		Events:       events.Log{},
		PollInterval: cctx.Duration("poll-interval"),
		PollTimeout:  cctx.Duration("poll-timeout"),
	})
	res, err := d.Dispatch(cctx.Context, cmd)
	if err != nil {
		return err
	}
	return printJSON(cctx, res)
}

func printJSON(cctx *cli.Context, v any) error {
	enc := json.NewEncoder(cctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
