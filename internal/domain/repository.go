package domain

import "context"

// AccountRepository is the keyed account store. Lookups return
// ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByExternalCustomerID(ctx context.Context, customerID string) (*Account, error)
	// Create returns ErrConcurrentUpdate when the identifier or the
	// external customer id is already taken.
	Create(ctx context.Context, account *Account) error
	// UpdateIfVersion persists account only if the stored version still
	// equals account.Version, then bumps it. Returns ErrConcurrentUpdate
	// otherwise.
	UpdateIfVersion(ctx context.Context, account *Account) error
	// MarkEventProcessed records eventID and reports whether this call was
	// the first to do so.
	MarkEventProcessed(ctx context.Context, eventID string, kind EventKind) (bool, error)
	Ping(ctx context.Context) error
}
