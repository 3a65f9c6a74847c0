package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

// Claims is the bearer token payload issued by the login endpoint.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the caller's credential and identity. It is created once by the
// login flow and handed to every component; components only read it.
type Session struct {
	Token  string
	UserID string
	Role   string
}

var ErrNoSubject = errors.New("token has no subject")

// New derives identity from token without verifying its signature; the
// backend verifies on every request.
func New(token string) (*Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Anonymous(), nil
	}
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if c.Subject == "" {
		return nil, ErrNoSubject
	}
	role := strings.ToUpper(c.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return &Session{Token: token, UserID: c.Subject, Role: role}, nil
}

func Anonymous() *Session { return &Session{} }

func (s *Session) Authenticated() bool { return s != nil && s.Token != "" && s.UserID != "" }

func (s *Session) IsAdmin() bool { return s.Authenticated() && s.Role == domain.RoleAdmin }

// Header returns the Authorization header value, or "" without a session.
func (s *Session) Header() string {
	if !s.Authenticated() {
		return ""
	}
	return "Bearer " + s.Token
}

func (s *Session) String() string {
	if !s.Authenticated() {
		return "anonymous"
	}
	return s.UserID + "/" + s.Role
}
