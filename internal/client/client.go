// Package client talks to the marketplace REST API on behalf of one session.
// Non-2xx responses are mapped onto the errs taxonomy so callers never look at
// HTTP status codes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type API struct {
	base string
	http Doer
	sess *session.Session
}

func New(baseURL string, doer Doer, s *session.Session) *API {
	if doer == nil {
		doer = http.DefaultClient
	}
	if s == nil {
		s = session.Anonymous()
	}
	return &API{base: strings.TrimRight(baseURL, "/"), http: doer, sess: s}
}

func (a *API) Session() *session.Session { return a.sess }

// As returns a copy of the client bound to another session.
func (a *API) As(s *session.Session) *API {
	return &API{base: a.base, http: a.http, sess: s}
}

// errorBody is the backend's error envelope. Extra fields depend on the code.
type errorBody struct {
	Error      string           `json:"error"`
	Code       string           `json:"code"`
	Current    string           `json:"current"`
	Attempted  string           `json:"attempted"`
	CurrentBid *decimal.Decimal `json:"current_bid"`
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return &errs.TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h := a.sess.Header(); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &errs.TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.TransportError{Method: method, Path: path, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &errs.TransportError{Method: method, Path: path, Status: resp.StatusCode, Message: "malformed response", Err: err}
		}
		return nil
	}
	return mapError(method, path, resp.StatusCode, raw)
}

func mapError(method, path string, status int, raw []byte) error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &errs.TransportError{Method: method, Path: path, Status: status, Message: msg}
	}

	switch status {
	case http.StatusBadRequest:
		return &errs.ValidationError{Reason: eb.Error}
	case http.StatusForbidden:
		return errs.Forbidden(method+" "+path, eb.Error)
	case http.StatusConflict:
		ce := &errs.ConflictError{
			Code:      eb.Code,
			Resource:  path,
			Current:   eb.Current,
			Attempted: eb.Attempted,
			Message:   eb.Error,
		}
		if eb.CurrentBid != nil {
			ce.CurrentBid = *eb.CurrentBid
		}
		return ce
	}
	return &errs.TransportError{Method: method, Path: path, Status: status, Message: eb.Error}
}

// IsUnauthorized reports a 401 from the backend, i.e. the session is stale.
func IsUnauthorized(err error) bool {
	var te *errs.TransportError
	return errors.As(err, &te) && te.Status == http.StatusUnauthorized
}
