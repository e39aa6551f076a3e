package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/guregu/null"
)

const DefaultPlan = "free"

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusUnpaid   AccountStatus = "unpaid"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusUnpaid:
		return true
	}
	return false
}

type Account struct {
	ID                 string        `json:"id"`
	Identifier         string        `json:"identifier"`           // Email or placeholder, unique
	ExternalCustomerID null.String   `json:"external_customer_id"` // Stripe customer ID, set once
	SubscriptionID     null.String   `json:"subscription_id"`      // Stripe subscription ID
	Name               null.String   `json:"name"`
	Balance            int64         `json:"balance"` // Minor units, e.g. 2000 = $20.00
	PlanName           string        `json:"plan_name"`
	Status             AccountStatus `json:"status"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// BalanceDecimal renders the balance in major units with two decimals.
func (a *Account) BalanceDecimal() string {
	sign := ""
	b := a.Balance
	if b < 0 {
		sign = "-"
		b = -b
	}
	return fmt.Sprintf("%s%d.%02d", sign, b/100, b%100)
}

// DeltaInput carries one signed balance adjustment and the linkage fields
// that came with it. Empty strings mean "not supplied".
type DeltaInput struct {
	Identifier         string
	ExternalCustomerID string
	SubscriptionID     string
	PlanName           string
	Name               string
	Amount             int64
}

// NormalizeEmail lower-cases and trims s and reports whether the result is a
// bare, well-formed address.
func NormalizeEmail(s string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(s))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return email, false
	}
	return email, true
}
