package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/GalaDe/payments-webhooks/internal/domain"
	orm "github.com/GalaDe/payments-webhooks/internal/sqlc"
	"github.com/GalaDe/payments-webhooks/internal/utils"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type postgresRepo struct {
	tx *PostgresTransactor
}

func NewPostgresRepo(tx *PostgresTransactor) domain.AccountRepository {
	return &postgresRepo{tx}
}

func (r *postgresRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	q := r.tx.WithQtx(ctx)

	dbAcc, err := q.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find account by identifier %s: %w", identifier, mapErr(err))
	}
	return toDomainAccount(dbAcc), nil
}

func (r *postgresRepo) FindByExternalCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	q := r.tx.WithQtx(ctx)

	dbAcc, err := q.GetAccountByExternalCustomerID(ctx, utils.NullStringToSQL(utils.StringToNull(customerID)))
	if err != nil {
		return nil, fmt.Errorf("find account by customer %s: %w", customerID, mapErr(err))
	}
	return toDomainAccount(dbAcc), nil
}

func (r *postgresRepo) Create(ctx context.Context, account *domain.Account) error {
	q := r.tx.WithQtx(ctx)

	id, err := uuid.Parse(account.ID)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", account.ID, err)
	}

	err = q.InsertAccount(ctx, orm.InsertAccountParams{
		ID:                 id,
		Identifier:         account.Identifier,
		ExternalCustomerID: utils.NullStringToSQL(account.ExternalCustomerID),
		SubscriptionID:     utils.NullStringToSQL(account.SubscriptionID),
		Name:               utils.NullStringToSQL(account.Name),
		Balance:            account.Balance,
		PlanName:           account.PlanName,
		Status:             string(account.Status),
	})
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.Identifier, mapErr(err))
	}
	account.Version = 1
	return nil
}

func (r *postgresRepo) UpdateIfVersion(ctx context.Context, account *domain.Account) error {
	query, args, err := buildUpdateIfVersion(r.tx.conn.Builder, account)
	if err != nil {
		return fmt.Errorf("build account update: %w", err)
	}

	row := r.tx.db(ctx).QueryRow(ctx, query, args...)
	if err := row.Scan(&account.Version, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update account %s at version %d: %w", account.ID, account.Version, domain.ErrConcurrentUpdate)
		}
		return fmt.Errorf("update account %s: %w", account.ID, mapErr(err))
	}
	return nil
}

func (r *postgresRepo) MarkEventProcessed(ctx context.Context, eventID string, kind domain.EventKind) (bool, error) {
	q := r.tx.WithQtx(ctx)

	n, err := q.MarkEventProcessed(ctx, orm.MarkEventProcessedParams{
		EventID:   eventID,
		EventType: string(kind),
	})
	if err != nil {
		return false, fmt.Errorf("mark event %s processed: %w", eventID, mapErr(err))
	}
	return n == 1, nil
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	if err := r.tx.conn.Ping(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

// buildUpdateIfVersion writes every mutable column and only matches the row
// when its version is unchanged since the read.
func buildUpdateIfVersion(b squirrel.StatementBuilderType, account *domain.Account) (string, []interface{}, error) {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return "", nil, fmt.Errorf("invalid account id %q: %w", account.ID, err)
	}

	return b.Update("accounts").
		SetMap(map[string]interface{}{
			"external_customer_id": utils.NullStringToSQL(account.ExternalCustomerID),
			"subscription_id":      utils.NullStringToSQL(account.SubscriptionID),
			"name":                 utils.NullStringToSQL(account.Name),
			"balance":              account.Balance,
			"plan_name":            account.PlanName,
			"status":               string(account.Status),
			"version":              squirrel.Expr("version + 1"),
			"updated_at":           squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": id.String(), "version": account.Version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
}

func toDomainAccount(a orm.Account) *domain.Account {
	return &domain.Account{
		ID:                 a.ID.String(),
		Identifier:         a.Identifier,
		ExternalCustomerID: utils.SqlToNullString(a.ExternalCustomerID),
		SubscriptionID:     utils.SqlToNullString(a.SubscriptionID),
		Name:               utils.SqlToNullString(a.Name),
		Balance:            a.Balance,
		PlanName:           a.PlanName,
		Status:             domain.AccountStatus(a.Status),
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// mapErr translates driver errors into the domain taxonomy. Anything that is
// not a server-side SQL error is treated as the store being unreachable.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAccountNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, pgErr.Message)
		}
		return err
	}

	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
