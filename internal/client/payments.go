package client

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

type paymentEnvelope struct {
	PaymentURL string         `json:"payment_url,omitempty"`
	Payment    domain.Payment `json:"payment"`
}

func (a *API) CreatePayment(ctx context.Context, txID string, method domain.PaymentMethod, amount decimal.Decimal) (domain.Payment, error) {
	var out paymentEnvelope
	err := a.do(ctx, "POST", txPath(txID)+"/payment", map[string]any{"payment_method": method, "amount": amount}, &out)
	return out.Payment, err
}

// Payment returns the latest attempt for a transaction.
func (a *API) Payment(ctx context.Context, txID string) (domain.Payment, error) {
	var out paymentEnvelope
	err := a.do(ctx, "GET", txPath(txID)+"/payment", nil, &out)
	return out.Payment, err
}

// ConfirmPayment asks for the gateway URL of the current attempt. The
// returned payment is the attempt the URL belongs to, which is a new one when
// the previous attempt had failed.
func (a *API) ConfirmPayment(ctx context.Context, txID string, method domain.PaymentMethod) (string, domain.Payment, error) {
	var out paymentEnvelope
	err := a.do(ctx, "POST", txPath(txID)+"/confirm-payment", map[string]any{"payment_method": method}, &out)
	return out.PaymentURL, out.Payment, err
}

func (a *API) PaymentStatus(ctx context.Context, txID string) (domain.PaymentStatus, error) {
	var out struct {
		Status domain.PaymentStatus `json:"status"`
	}
	err := a.do(ctx, "GET", txPath(txID)+"/payment-status", nil, &out)
	return out.Status, err
}

func (a *API) ApprovePayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	var out paymentEnvelope
	err := a.do(ctx, "PUT", "/transaction/api/admin/payments/"+url.PathEscape(paymentID)+"/approve", nil, &out)
	return out.Payment, err
}

// PaymentQueue lists payments in a status for admins; "" means pending.
func (a *API) PaymentQueue(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	var out struct {
		Payments []domain.Payment `json:"payments"`
	}
	path := "/transaction/api/admin/payments"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	err := a.do(ctx, "GET", path, nil, &out)
	return out.Payments, err
}

// GatewayResult reports a payment provider outcome. It is what the provider
// calls after the buyer leaves its page; the CLI uses it for cash desks and demos.
func (a *API) GatewayResult(ctx context.Context, paymentID string, resultCode int) (domain.Payment, error) {
	var out paymentEnvelope
	err := a.do(ctx, "POST", "/payments/webhook", map[string]any{"payment_id": paymentID, "result_code": resultCode}, &out)
	return out.Payment, err
}
