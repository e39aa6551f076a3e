package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/guregu/null"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

// PlaceholderDomain is appended to synthesized identifiers for accounts
// first seen without a usable email.
const PlaceholderDomain = "customers.invalid"

// Ledger applies balance deltas and plan changes to accounts. Writes are
// conditional on the version read, so a concurrent writer surfaces as
// domain.ErrConcurrentUpdate and the caller retries.
type Ledger struct {
	repo   domain.AccountRepository
	logger *zap.Logger
	newID  func() string
}

func New(repo domain.AccountRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// ApplyDelta adds in.Amount to the matching account, creating it on first
// sight. Lookup tries the external customer id before the identifier.
func (l *Ledger) ApplyDelta(ctx context.Context, in domain.DeltaInput) (*domain.Account, error) {
	email, ok := domain.NormalizeEmail(in.Identifier)
	if !ok {
		email = ""
	}

	acc, err := l.lookup(ctx, in.ExternalCustomerID, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return l.create(ctx, in, email)
	}
	if err != nil {
		return nil, err
	}

	acc.Balance += in.Amount
	if !acc.ExternalCustomerID.Valid && in.ExternalCustomerID != "" {
		acc.ExternalCustomerID = null.StringFrom(in.ExternalCustomerID)
	}
	if !acc.SubscriptionID.Valid && in.SubscriptionID != "" {
		acc.SubscriptionID = null.StringFrom(in.SubscriptionID)
	}
	if !acc.Name.Valid && in.Name != "" {
		acc.Name = null.StringFrom(in.Name)
	}
	if in.PlanName != "" {
		acc.PlanName = in.PlanName
	}

	if err := l.repo.UpdateIfVersion(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// SetPlanAndStatus updates the account linked to customerID. It never
// creates accounts; an empty plan or invalid status leaves that field alone.
// Events for a subscription other than the linked one are ignored, as are
// inactive statuses for a subscription the account does not hold. Ignored
// events report applied=false.
func (l *Ledger) SetPlanAndStatus(ctx context.Context, customerID, plan string, status domain.AccountStatus, subscriptionID string) (*domain.Account, bool, error) {
	return l.applySubscription(ctx, customerID, plan, status, subscriptionID, false)
}

// SwitchSubscription is SetPlanAndStatus for a newly created subscription:
// a live subscription replaces the one the account is linked to.
func (l *Ledger) SwitchSubscription(ctx context.Context, customerID, plan string, status domain.AccountStatus, subscriptionID string) (*domain.Account, bool, error) {
	return l.applySubscription(ctx, customerID, plan, status, subscriptionID, true)
}

func (l *Ledger) applySubscription(ctx context.Context, customerID, plan string, status domain.AccountStatus, subscriptionID string, replace bool) (acc *domain.Account, applied bool, err error) {
	acc, err = l.mutate(ctx, customerID, func(acc *domain.Account) bool {
		if subscriptionID != "" {
			held := acc.SubscriptionID.Valid
			switch {
			case held && acc.SubscriptionID.String == subscriptionID:
			case held && (!replace || status == domain.AccountStatusInactive):
				return false
			case !held && status == domain.AccountStatusInactive:
				return false
			default:
				acc.SubscriptionID = null.StringFrom(subscriptionID)
			}
		}
		if plan != "" {
			acc.PlanName = plan
		}
		if status.Valid() {
			acc.Status = status
		}
		applied = true
		return true
	})
	return acc, applied, err
}

func (l *Ledger) SetStatus(ctx context.Context, customerID string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid account status %q", status)
	}
	acc, _, err := l.SetPlanAndStatus(ctx, customerID, "", status, "")
	return acc, err
}

// EndSubscription resets the account to the default plan and marks it
// inactive. A deletion for a subscription other than the one linked to the
// account is ignored and reported as applied=false.
func (l *Ledger) EndSubscription(ctx context.Context, customerID, subscriptionID string) (acc *domain.Account, applied bool, err error) {
	acc, err = l.mutate(ctx, customerID, func(acc *domain.Account) bool {
		if acc.SubscriptionID.Valid && subscriptionID != "" && acc.SubscriptionID.String != subscriptionID {
			return false
		}
		acc.PlanName = domain.DefaultPlan
		acc.Status = domain.AccountStatusInactive
		acc.SubscriptionID = null.String{}
		applied = true
		return true
	})
	return acc, applied, err
}

// Get finds an account by external customer id or by identifier.
func (l *Ledger) Get(ctx context.Context, key string) (*domain.Account, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrAccountNotFound
	}
	email, ok := domain.NormalizeEmail(key)
	if !ok {
		email = key
	}
	return l.lookup(ctx, key, email)
}

func (l *Ledger) mutate(ctx context.Context, customerID string, fn func(*domain.Account) bool) (*domain.Account, error) {
	if customerID == "" {
		return nil, domain.ErrAccountNotFound
	}
	acc, err := l.repo.FindByExternalCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !fn(acc) {
		return acc, nil
	}
	if err := l.repo.UpdateIfVersion(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (l *Ledger) lookup(ctx context.Context, customerID, identifier string) (*domain.Account, error) {
	if customerID != "" {
		acc, err := l.repo.FindByExternalCustomerID(ctx, customerID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
	}
	if identifier != "" {
		return l.repo.FindByIdentifier(ctx, identifier)
	}
	return nil, domain.ErrAccountNotFound
}

func (l *Ledger) create(ctx context.Context, in domain.DeltaInput, email string) (*domain.Account, error) {
	id := l.newID()
	identifier := email
	if identifier == "" {
		identifier = placeholderIdentifier(in.ExternalCustomerID, id)
	}

	plan := in.PlanName
	if plan == "" {
		plan = domain.DefaultPlan
	}

	acc := &domain.Account{
		ID:                 id,
		Identifier:         identifier,
		ExternalCustomerID: null.NewString(in.ExternalCustomerID, in.ExternalCustomerID != ""),
		SubscriptionID:     null.NewString(in.SubscriptionID, in.SubscriptionID != ""),
		Name:               null.NewString(in.Name, in.Name != ""),
		Balance:            in.Amount,
		PlanName:           plan,
		Status:             domain.AccountStatusActive,
	}
	if err := l.repo.Create(ctx, acc); err != nil {
		return nil, err
	}

	l.logger.Info("account provisioned",
		zap.String("account_id", acc.ID),
		zap.String("identifier", acc.Identifier),
		zap.String("customer_id", in.ExternalCustomerID),
	)
	return acc, nil
}

func placeholderIdentifier(customerID, accountID string) string {
	local := strings.TrimSpace(customerID)
	if local == "" {
		local = accountID
	}
	return local + "@" + PlaceholderDomain
}

// IsPlaceholder reports whether identifier was synthesized by the ledger.
func IsPlaceholder(identifier string) bool {
	return strings.HasSuffix(identifier, "@"+PlaceholderDomain)
}
