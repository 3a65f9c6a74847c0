// Package command turns user actions into typed values and routes each one to
// the component that owns it.
package command

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/client"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/lifecycle"
)

type Command interface {
	Name() string
}

type CreateAuction struct{ Request client.CreateAuctionRequest }

type RefreshAuction struct{ AuctionID string }

type PlaceBid struct {
	AuctionID string
	Amount    decimal.Decimal
}

type ReviewAuction struct {
	AuctionID string
	Approve   bool
}

type FinalizeAuction struct{ AuctionID string }

type RemoveAuction struct {
	ResourceType domain.ResourceType
	ResourceID   string
}

type CreateTransaction struct{ Request client.CreateTransactionRequest }

type SignContract struct{ TransactionID string }

// InitiatePayment pays the transaction's final price.
type InitiatePayment struct {
	TransactionID string
	Method        domain.PaymentMethod
}

type ConfirmPayment struct {
	TransactionID string
	Method        domain.PaymentMethod
}

// PollPayment waits for the gateway result; zero Timeout uses the dispatcher's.
type PollPayment struct {
	TransactionID string
	Timeout       time.Duration
}

type ApprovePayment struct{ TransactionID string }

type CancelTransaction struct{ TransactionID string }

type ShowTransaction struct{ TransactionID string }

type Purchase struct {
	Request client.CreateTransactionRequest
	Method  domain.PaymentMethod
	Timeout time.Duration
}

func (CreateAuction) Name() string     { return "auction.create" }
func (RefreshAuction) Name() string    { return "auction.refresh" }
func (PlaceBid) Name() string          { return "auction.bid" }
func (ReviewAuction) Name() string     { return "auction.review" }
func (FinalizeAuction) Name() string   { return "auction.finalize" }
func (RemoveAuction) Name() string     { return "auction.remove" }
func (CreateTransaction) Name() string { return "transaction.create" }
func (SignContract) Name() string      { return "contract.sign" }
func (InitiatePayment) Name() string   { return "payment.initiate" }
func (ConfirmPayment) Name() string    { return "payment.confirm" }
func (PollPayment) Name() string       { return "payment.poll" }
func (ApprovePayment) Name() string    { return "payment.approve" }
func (CancelTransaction) Name() string { return "transaction.cancel" }
func (ShowTransaction) Name() string   { return "transaction.show" }
func (Purchase) Name() string          { return "transaction.purchase" }

// Result carries whatever the command produced; unrelated fields stay zero.
type Result struct {
	Auction     *domain.Auction      `json:"auction,omitempty"`
	Transaction *domain.Transaction  `json:"transaction,omitempty"`
	Contract    *domain.Contract     `json:"contract,omitempty"`
	Payment     *domain.Payment      `json:"payment,omitempty"`
	PaymentURL  string               `json:"payment_url,omitempty"`
	Status      domain.PaymentStatus `json:"payment_status,omitempty"`
	Stage       lifecycle.Stage      `json:"stage,omitempty"`
}
