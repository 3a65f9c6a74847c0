package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/repos"
	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/session"
)

var (
	ErrBadCreds     = errors.New("invalid email or password")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type AuthService struct {
	Users  *repos.UserRepo
	Secret []byte
	TTL    time.Duration
}

func NewAuthService(users *repos.UserRepo, secret string) *AuthService {
	return &AuthService{Users: users, Secret: []byte(secret), TTL: 24 * time.Hour}
}

// Login checks credentials and issues a signed bearer token.
func (s *AuthService) Login(email, password string) (string, *domain.User, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return "", nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", nil, ErrBadCreds
	}
	tok, err := s.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

func (s *AuthService) Issue(userID, role string) (string, error) {
	claims := session.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.TTL)),
			Issuer:    "evtrade",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify validates signature and expiry, then loads the account: a token for
// a removed user is invalid and the stored role wins over the claim.
func (s *AuthService) Verify(token string) (Actor, error) {
	var c session.Claims
	t, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid || c.Subject == "" {
		return Actor{}, ErrInvalidToken
	}
	u, err := s.Users.ByID(c.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, ErrInvalidToken
	}
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: u.ID, Role: u.Role}, nil
}
