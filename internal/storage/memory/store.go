package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

type txKey struct{}

// Store keeps accounts in process memory. It satisfies both
// domain.AccountRepository and domain.Transactor; transactions are
// serialized and rolled back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	accounts     map[string]domain.Account // by id
	byIdentifier map[string]string
	byCustomer   map[string]string
	events       map[string]domain.EventKind

	now func() time.Time
}

var (
	_ domain.AccountRepository = (*Store)(nil)
	_ domain.Transactor        = (*Store)(nil)
)

func New() *Store {
	return &Store{
		accounts:     map[string]domain.Account{},
		byIdentifier: map[string]string{},
		byCustomer:   map[string]string{},
		events:       map[string]domain.EventKind{},
		now:          time.Now,
	}
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, fmt.Errorf("find account by identifier %s: %w", identifier, domain.ErrAccountNotFound)
	}
	acc := s.accounts[id]
	return &acc, nil
}

func (s *Store) FindByExternalCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCustomer[customerID]
	if !ok {
		return nil, fmt.Errorf("find account by customer %s: %w", customerID, domain.ErrAccountNotFound)
	}
	acc := s.accounts[id]
	return &acc, nil
}

func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byIdentifier[account.Identifier]; taken {
		return fmt.Errorf("identifier %s: %w", account.Identifier, domain.ErrConcurrentUpdate)
	}
	if account.ExternalCustomerID.Valid {
		if _, taken := s.byCustomer[account.ExternalCustomerID.String]; taken {
			return fmt.Errorf("customer %s: %w", account.ExternalCustomerID.String, domain.ErrConcurrentUpdate)
		}
	}

	now := s.now().UTC()
	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now

	s.accounts[account.ID] = *account
	s.byIdentifier[account.Identifier] = account.ID
	if account.ExternalCustomerID.Valid {
		s.byCustomer[account.ExternalCustomerID.String] = account.ID
	}
	return nil
}

func (s *Store) UpdateIfVersion(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.ID]
	if !ok {
		return fmt.Errorf("update account %s: %w", account.ID, domain.ErrAccountNotFound)
	}
	if current.Version != account.Version {
		return fmt.Errorf("update account %s at version %d: %w", account.ID, account.Version, domain.ErrConcurrentUpdate)
	}
	if account.ExternalCustomerID.Valid {
		if owner, taken := s.byCustomer[account.ExternalCustomerID.String]; taken && owner != account.ID {
			return fmt.Errorf("customer %s: %w", account.ExternalCustomerID.String, domain.ErrConcurrentUpdate)
		}
	}

	if current.ExternalCustomerID.Valid && current.ExternalCustomerID != account.ExternalCustomerID {
		delete(s.byCustomer, current.ExternalCustomerID.String)
	}
	if account.ExternalCustomerID.Valid {
		s.byCustomer[account.ExternalCustomerID.String] = account.ID
	}

	account.Version++
	account.UpdatedAt = s.now().UTC()
	account.Identifier = current.Identifier
	account.CreatedAt = current.CreatedAt
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID string, kind domain.EventKind) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[eventID]; seen {
		return false, nil
	}
	s.events[eventID] = kind
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

type snapshot struct {
	accounts     map[string]domain.Account
	byIdentifier map[string]string
	byCustomer   map[string]string
	events       map[string]domain.EventKind
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		accounts:     copyMap(s.accounts),
		byIdentifier: copyMap(s.byIdentifier),
		byCustomer:   copyMap(s.byCustomer),
		events:       copyMap(s.events),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.byIdentifier = snap.byIdentifier
	s.byCustomer = snap.byCustomer
	s.events = snap.events
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
