package client

import (
	"context"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/errs"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login exchanges credentials for a session. The returned session is the
// only thing the other components need.
func (a *API) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if email == "" || password == "" {
		return nil, errs.Invalid("credentials", "email and password are required")
	}
	var out loginResponse
	if err := a.do(ctx, "POST", "/user/api/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	return session.New(out.Token)
}
