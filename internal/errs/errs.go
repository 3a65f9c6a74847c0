// Package errs is the error taxonomy shared by the client components.
// Callers inspect errors with errors.Is and errors.As; nothing here is retried
// automatically except a status read inside a payment poll.
package errs

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Conflict codes as returned by the backend in the "code" field.
const (
	CodeInvalidTransition = "invalid_transition"
	CodeBidTooLow         = "bid_too_low"
	CodeAlreadySigned     = "already_signed"
	CodeTransactionClosed = "transaction_closed"
	CodeOpenTransaction   = "open_transaction_exists"
	CodePaymentTerminal   = "payment_terminal"
	CodeContractNotReady  = "contract_not_ready"
)

var (
	ErrAlreadySigned     = errors.New("contract already signed by this party")
	ErrTransactionClosed = errors.New("transaction is closed")
	ErrBidTooLow         = errors.New("bid too low")
)

// ValidationError is detected before anything is sent over the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// ConflictError means local state no longer matches server truth. The caller
// must re-fetch before trying again.
type ConflictError struct {
	Code      string
	Resource  string
	Current   string
	Attempted string
	Message   string
	// CurrentBid is set for bid_too_low.
	CurrentBid decimal.Decimal
}

func (e *ConflictError) Error() string {
	switch {
	case e.Code == CodeBidTooLow:
		return fmt.Sprintf("bid too low, current is %s", e.CurrentBid.String())
	case e.Message != "":
		return e.Message
	case e.Attempted != "":
		return fmt.Sprintf("%s: cannot move to %s from %s", e.Resource, e.Attempted, e.Current)
	}
	return fmt.Sprintf("%s: conflict (%s)", e.Resource, e.Code)
}

func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrAlreadySigned:
		return e.Code == CodeAlreadySigned
	case ErrTransactionClosed:
		return e.Code == CodeTransactionClosed
	case ErrBidTooLow:
		return e.Code == CodeBidTooLow
	}
	return false
}

func Transition(resource, current, attempted string) error {
	return &ConflictError{Code: CodeInvalidTransition, Resource: resource, Current: current, Attempted: attempted}
}

func AlreadySigned(txID string, party string) error {
	return &ConflictError{Code: CodeAlreadySigned, Resource: "contract " + txID, Message: party + " already signed contract " + txID}
}

func TransactionClosed(txID string) error {
	return &ConflictError{Code: CodeTransactionClosed, Resource: "transaction " + txID, Message: "transaction " + txID + " is closed"}
}

func BidTooLow(current decimal.Decimal) error {
	return &ConflictError{Code: CodeBidTooLow, Resource: "auction", CurrentBid: current}
}

type ForbiddenError struct {
	Action string
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s: %s", e.Action, e.Reason)
}

func Forbidden(action, reason string) error { return &ForbiddenError{Action: action, Reason: reason} }

// PollTimeoutError is "could not confirm yet", not a failed payment.
type PollTimeoutError struct {
	TransactionID string
	Waited        time.Duration
	LastStatus    string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("could not confirm payment for %s after %s (last status %q), please check later",
		e.TransactionID, e.Waited.Round(time.Millisecond), e.LastStatus)
}

// TransportError is a network or HTTP failure with no interpretable
// application error.
type TransportError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports a 404 from the backend.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Status == 404
}

// Retryable reports whether a status read may be repeated after err.
func Retryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Status == 0 || te.Status >= 500 || te.Status == 429
}
