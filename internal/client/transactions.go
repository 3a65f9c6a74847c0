package client

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type CreateTransactionRequest struct {
	ListingID  string          `json:"listing_id"`
	SellerID   string          `json:"seller_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

type agreement struct {
	Transaction domain.Transaction `json:"transaction"`
	Contract    domain.Contract    `json:"contract"`
}

func txPath(id string) string { return "/transaction/api/transactions/" + url.PathEscape(id) }

func (a *API) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (domain.Transaction, domain.Contract, error) {
	var out agreement
	err := a.do(ctx, "POST", "/transaction/api/transactions", req, &out)
	return out.Transaction, out.Contract, err
}

func (a *API) Contract(ctx context.Context, txID string) (domain.Transaction, domain.Contract, error) {
	var out agreement
	err := a.do(ctx, "GET", txPath(txID)+"/contract", nil, &out)
	return out.Transaction, out.Contract, err
}

func (a *API) SignContract(ctx context.Context, txID string) (domain.Contract, error) {
	var out struct {
		Contract domain.Contract `json:"contract"`
	}
	err := a.do(ctx, "POST", txPath(txID)+"/contract/sign", nil, &out)
	return out.Contract, err
}

func (a *API) CancelTransaction(ctx context.Context, txID string) error {
	return a.do(ctx, "DELETE", txPath(txID), nil, nil)
}
