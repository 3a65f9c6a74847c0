package handlers

import (
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/config"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/events"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth     *services.AuthService
	Auctions *services.AuctionService

	AuthHandler        *AuthHandler
	AuctionHandler     *AuctionHandler
	TransactionHandler *TransactionHandler
	PaymentHandler     *PaymentHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, pub events.Publisher) *Deps {
	userRepo := repos.NewUserRepo(db)
	auctionRepo := repos.NewAuctionRepo(db)
	txRepo := repos.NewTransactionRepo(db)
	payRepo := repos.NewPaymentRepo(db)

	authSvc := services.NewAuthService(userRepo, cfg.JWTSecret)
	auctionSvc := services.NewAuctionService(auctionRepo, pub, cfg.AuctionDuration)
	txSvc := services.NewTransactionService(txRepo, pub)
	paySvc := services.NewPaymentService(txSvc, payRepo, pub, cfg.PublicURL)

	return &Deps{
		Auth:               authSvc,
		Auctions:           auctionSvc,
		AuthHandler:        &AuthHandler{Auth: authSvc},
		AuctionHandler:     &AuctionHandler{Auctions: auctionSvc},
		TransactionHandler: &TransactionHandler{Txs: txSvc},
		PaymentHandler:     &PaymentHandler{Payments: paySvc},
	}
}
