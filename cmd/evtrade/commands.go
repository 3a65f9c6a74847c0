package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/command"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

var cmdLogin = &cli.Command{
	Name:  "login",
	Usage: "log in and print a token for --token or EVTRADE_TOKEN",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "email", Required: true},
		&cli.StringFlag{Name: "password", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		api := client.New(cctx.String("api"), nil, nil)
		s, err := api.Login(cctx.Context, cctx.String("email"), cctx.String("password"))
		if err != nil {
			return err
		}
		return printJSON(cctx, map[string]string{"token": s.Token, "user_id": s.UserID, "role": s.Role})
	},
}

var txFlag = &cli.StringFlag{Name: "tx", Usage: "transaction id", Required: true}

var methodFlag = &cli.StringFlag{Name: "method", Value: string(domain.MethodEWallet), Usage: "e-wallet, bank or cash"}

func amountArg(cctx *cli.Context, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(cctx.String(name))
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

var cmdAuction = &cli.Command{
	Name:  "auction",
	Usage: "create, bid on and manage auctions",
	Subcommands: []*cli.Command{
		{
			Name: "create",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Required: true, Usage: "vehicle or battery"},
				&cli.StringFlag{Name: "resource", Required: true},
				&cli.StringFlag{Name: "opening", Required: true, Usage: "opening bid"},
				&cli.TimestampFlag{Name: "start", Layout: time.RFC3339},
				&cli.TimestampFlag{Name: "end", Layout: time.RFC3339},
			},
			Action: func(cctx *cli.Context) error {
				opening, err := amountArg(cctx, "opening")
				if err != nil {
					return err
				}
				req := client.CreateAuctionRequest{
					ResourceType: domain.ResourceType(cctx.String("type")),
					ResourceID:   cctx.String("resource"),
					StartTime:    time.Now().UTC(),
					EndTime:      cctx.Timestamp("end"),
					CurrentBid:   opening,
				}
				if st := cctx.Timestamp("start"); st != nil {
					req.StartTime = *st
				}
				return dispatch(cctx, command.CreateAuction{Request: req})
			},
		},
		{
			Name:      "show",
			ArgsUsage: "<auction-id>",
			Action: func(cctx *cli.Context) error {
				return dispatch(cctx, command.RefreshAuction{AuctionID: cctx.Args().First()})
			},
		},
		{
			Name:      "bid",
			ArgsUsage: "<auction-id>",
			Flags:     []cli.Flag{&cli.StringFlag{Name: "amount", Required: true}},
			Action: func(cctx *cli.Context) error {
				amount, err := amountArg(cctx, "amount")
				if err != nil {
					return err
				}
				return dispatch(cctx, command.PlaceBid{AuctionID: cctx.Args().First(), Amount: amount})
			},
		},
		{
			Name:      "review",
			Usage:     "approve or reject a pending auction (admin)",
			ArgsUsage: "<auction-id>",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "reject"}},
			Action: func(cctx *cli.Context) error {
				return dispatch(cctx, command.ReviewAuction{AuctionID: cctx.Args().First(), Approve: !cctx.Bool("reject")})
			},
		},
		{
			Name:      "finalize",
			Usage:     "end a started auction now (admin)",
			ArgsUsage: "<auction-id>",
			Action: func(cctx *cli.Context) error {
				return dispatch(cctx, command.FinalizeAuction{AuctionID: cctx.Args().First()})
			},
		},
		{
			Name:      "remove",
			ArgsUsage: "<vehicle|battery> <resource-id>",
			Action: func(cctx *cli.Context) error {
				if cctx.NArg() != 2 {
					return cli.ShowSubcommandHelp(cctx)
				}
				return dispatch(cctx, command.RemoveAuction{
					ResourceType: domain.ResourceType(cctx.Args().Get(0)),
					ResourceID:   cctx.Args().Get(1),
				})
			},
		},
	},
}

var cmdTransaction = &cli.Command{
	Name:    "tx",
	Aliases: []string{"transaction"},
	Usage:   "contracts, payments and cancellation",
	Subcommands: []*cli.Command{
		{
			Name: "create",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "listing", Required: true},
				&cli.StringFlag{Name: "seller", Required: true},
				&cli.StringFlag{Name: "price", Required: true},
			},
			Action: func(cctx *cli.Context) error {
				req, err := txRequest(cctx)
				if err != nil {
					return err
				}
				return dispatch(cctx, command.CreateTransaction{Request: req})
			},
		},
		{
			Name:   "show",
			Flags:  []cli.Flag{txFlag},
			Action: func(cctx *cli.Context) error { return dispatch(cctx, command.ShowTransaction{TransactionID: cctx.String("tx")}) },
		},
		{
			Name:   "sign",
			Flags:  []cli.Flag{txFlag},
			Action: func(cctx *cli.Context) error { return dispatch(cctx, command.SignContract{TransactionID: cctx.String("tx")}) },
		},
		{
			Name:  "pay",
			Flags: []cli.Flag{txFlag, methodFlag},
			Action: func(cctx *cli.Context) error {
				return dispatch(cctx, command.InitiatePayment{TransactionID: cctx.String("tx"), Method: domain.PaymentMethod(cctx.String("method"))})
			},
		},
		{
			Name:  "confirm",
			Flags: []cli.Flag{txFlag, methodFlag},
			Action: func(cctx *cli.Context) error {
				return dispatch(cctx, command.ConfirmPayment{TransactionID: cctx.String("tx"), Method: domain.PaymentMethod(cctx.String("method"))})
			},
		},
		{
			Name:   "poll",
			Flags:  []cli.Flag{txFlag},
			Action: func(cctx *cli.Context) error { return dispatch(cctx, command.PollPayment{TransactionID: cctx.String("tx")}) },
		},
		{
			Name:   "approve",
			Usage:  "approve a pending payment (admin)",
			Flags:  []cli.Flag{txFlag},
			Action: func(cctx *cli.Context) error { return dispatch(cctx, command.ApprovePayment{TransactionID: cctx.String("tx")}) },
		},
		{
			Name:   "cancel",
			Flags:  []cli.Flag{txFlag},
			Action: func(cctx *cli.Context) error { return dispatch(cctx, command.CancelTransaction{TransactionID: cctx.String("tx")}) },
		},
		{
			Name:  "purchase",
			Usage: "create, sign, wait for the seller, pay and poll",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "listing", Required: true},
				&cli.StringFlag{Name: "seller", Required: true},
				&cli.StringFlag{Name: "price", Required: true},
				methodFlag,
			},
			Action: func(cctx *cli.Context) error {
				req, err := txRequest(cctx)
				if err != nil {
					return err
				}
				return dispatch(cctx, command.Purchase{Request: req, Method: domain.PaymentMethod(cctx.String("method"))})
			},
		},
	},
}

func txRequest(cctx *cli.Context) (client.CreateTransactionRequest, error) {
	price, err := amountArg(cctx, "price")
	if err != nil {
		return client.CreateTransactionRequest{}, err
	}
	return client.CreateTransactionRequest{
		ListingID:  cctx.String("listing"),
		SellerID:   cctx.String("seller"),
		FinalPrice: price,
	}, nil
}
