package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	orm "github.com/GalaDe/payments-webhooks/internal/sqlc"
)

const (
	_defaultMaxPoolSize  = 10
	_defaultConnAttempts = 5
	_defaultConnTimeout  = time.Second
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Postgres struct {
	maxPoolSize  int
	connAttempts int
	connTimeout  time.Duration
	logger       *zap.Logger

	Builder squirrel.StatementBuilderType
	Pool    *pgxpool.Pool
	Orm     *orm.Queries
}

func NewPostgresDB(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pg := &Postgres{
		maxPoolSize:  _defaultMaxPoolSize,
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(pg)
	}

	pg.Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	// Respect provided DSN; default sslmode to disable if not set.
	if !strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + "sslmode=disable"
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres - NewPostgresDB - pgxpool.ParseConfig: %w", err)
	}
	poolConfig.MaxConns = int32(pg.maxPoolSize)

	for attempts := pg.connAttempts; attempts > 0; attempts-- {
		pg.Pool, err = pgxpool.ConnectConfig(ctx, poolConfig)
		if err == nil {
			break
		}
		pg.logger.Warn("postgres is trying to connect",
			zap.Int("attempts_left", attempts-1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres - NewPostgresDB: %w", ctx.Err())
		case <-time.After(pg.connTimeout):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres - NewPostgresDB - connAttempts == 0: %w", err)
	}

	pg.Orm = orm.New(pg.Pool)

	return pg, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping is a method that pings the database
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Migrate applies the embedded schema files in lexical order. Every file is
// idempotent, so running it on an up-to-date database is a no-op.
func (p *Postgres) Migrate(ctx context.Context) ([]string, error) {
	names, err := MigrationNames()
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		body, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := p.Pool.Exec(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("apply migration %s: %w", name, err)
		}
		p.logger.Info("applied migration", zap.String("migration", name))
	}

	return names, nil
}

func MigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
