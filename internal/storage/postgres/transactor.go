package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	orm "github.com/GalaDe/payments-webhooks/internal/sqlc"
)

// txKey is a context key for holding pgx.Tx
type txKey struct{}

type PostgresTransactor struct {
	conn   *Postgres
	orm    *orm.Queries
	logger *zap.Logger
}

var _ domain.Transactor = (*PostgresTransactor)(nil)

func NewPostgresTransactor(conn *Postgres, logger *zap.Logger) *PostgresTransactor {
	return &PostgresTransactor{conn: conn, orm: conn.Orm, logger: logger}
}

// WithinTransaction runs queries within a transaction
//
// The transaction commits when functions are finished without error
// and is rolledback otherwise.
// ref: https://www.kaznacheev.me/posts/en/clean-transactions-in-hexagon/
func (p *PostgresTransactor) WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	tx, err := p.conn.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapErr(err))
	}

	// run callback
	err = txFunc(InjectTx(ctx, tx))
	if err != nil {
		// if err, rollback
		if errRollback := tx.Rollback(ctx); errRollback != nil {
			p.logger.Error("rollback tx", zap.Error(errRollback))
		}
		return err
	}
	// if no err, commit
	if errCommit := tx.Commit(ctx); errCommit != nil {
		return fmt.Errorf("commit tx: %w", mapErr(errCommit))
	}

	return nil
}

// WithQtx returns queries bound to the transaction in ctx, or to the pool
// when there is none.
func (p *PostgresTransactor) WithQtx(ctx context.Context) orm.Querier {
	if tx := ExtractTx(ctx); tx != nil {
		return p.orm.WithTx(tx)
	}
	return p.orm
}

// db returns the transaction in ctx for builder-produced statements, or the
// pool when there is none.
func (p *PostgresTransactor) db(ctx context.Context) orm.DBTX {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return p.conn.Pool
}

// InjectTx injects transactions into context
func InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtractTx extracts transaction from context
func ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}
