package services

import (
	"errors"
	"strings"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
)

var (
	ErrInvalid   = errors.New("invalid input")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// Error carries a kind (one of the sentinels above) plus the machine-readable
// code and extra fields the HTTP layer puts in the response body.
type Error struct {
	Kind   error
	Code   string
	Msg    string
	Fields map[string]any
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func invalid(msg string) error   { return &Error{Kind: ErrInvalid, Code: "invalid", Msg: msg} }
func notFound(msg string) error  { return &Error{Kind: ErrNotFound, Code: "not_found", Msg: msg} }
func forbidden(msg string) error { return &Error{Kind: ErrForbidden, Code: "forbidden", Msg: msg} }

func conflict(code, msg string, fields map[string]any) error {
	return &Error{Kind: ErrConflict, Code: code, Msg: msg, Fields: fields}
}

func badTransition(resource, current, attempted string) error {
	return conflict(errs.CodeInvalidTransition, resource+" is "+current+", cannot move to "+attempted,
		map[string]any{"current": current, "attempted": attempted})
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }
