package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/domain"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// maxAmount caps money fields at Numeric(12,2).
var maxAmount = decimal.New(1, 10)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// ID validates a resource identifier (auction, listing, transaction, payment ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Amount accepts a positive amount with at most two decimal places.
func Amount(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(maxAmount) && d.Equal(d.Round(2))
}

func ResourceType(s string) (domain.ResourceType, bool) {
	rt := domain.ResourceType(strings.ToLower(strings.TrimSpace(s)))
	return rt, rt == domain.ResourceVehicle || rt == domain.ResourceBattery
}

func PaymentMethod(s string) (domain.PaymentMethod, bool) {
	m := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

// Window checks an auction schedule: end after start.
func Window(start, end time.Time) bool {
	return !start.IsZero() && end.After(start)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	return l >= 8 && l <= 64
}
