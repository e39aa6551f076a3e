package domain

import "context"

// Transactor defines a Transaction Port interface
type Transactor interface {
	// Runs fn in a transaction, committing only when fn returns nil
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
