package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxstdlib "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	insertSampleQuery = `
INSERT INTO samples (id, cpu_usage, memory_usage, disk_usage, "timestamp")
VALUES ($1, $2, $3, $4, $5)`

	mostRecentSampleQuery = `
SELECT id, cpu_usage, memory_usage, disk_usage, "timestamp"
FROM samples
ORDER BY "timestamp" DESC, seq DESC
LIMIT 1`
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

type Option func(config *pgxpool.Config)

func WithMaxConnections(maxConns int32) Option {
	return func(config *pgxpool.Config) {
		config.MaxConns = maxConns
	}
}

func WithMinIdle(minIdle int32) Option {
	return func(config *pgxpool.Config) {
		config.MinIdleConns = minIdle
	}
}

// New creates the connection pool. Connections are opened lazily, so an
// unreachable database is reported by Ping and by the first query.
func New(ctx context.Context, databaseURL string, options ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection pool config: %w", err)
	}

	config.MaxConns = 4
	for _, option := range options {
		option(config)
	}

	// expose otel traces
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// expose otel metrics
	if err := otelpgx.RecordStats(pool); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to record stats: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) ([]*goose.MigrationResult, error) {
	db := sql.OpenDB(pgxstdlib.GetPoolConnector(s.pool))
	db.SetMaxIdleConns(0) // let the pool manage the number of connections
	defer db.Close()

	migrationsFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrationsFS)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, classify("migrate", err)
	}

	return results, nil
}

func (s *Store) Insert(ctx context.Context, sample models.Sample) error {
	if err := sample.Validate(); err != nil {
		return store.WriteError(err)
	}

	id, err := uuid.Parse(sample.ID)
	if err != nil {
		return store.WriteError(fmt.Errorf("invalid sample id %q: %w", sample.ID, err))
	}

	_, err = s.pool.Exec(ctx, insertSampleQuery, id, sample.CPUUsage, sample.MemoryUsage, sample.DiskUsage, sample.Timestamp)
	if err != nil {
		if isConnectionError(err) {
			return store.ConnectionError("insert", err)
		}

		return store.WriteError(err)
	}

	return nil
}

func (s *Store) MostRecent(ctx context.Context) (*models.Sample, error) {
	var (
		id        uuid.UUID
		sample    models.Sample
		timestamp time.Time
	)

	err := s.pool.QueryRow(ctx, mostRecentSampleQuery).Scan(&id, &sample.CPUUsage, &sample.MemoryUsage, &sample.DiskUsage, &timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, classify("most recent", err)
	}

	sample.ID = id.String()
	sample.Timestamp = timestamp.UTC()

	return &sample, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return store.ConnectionError("ping", err)
	}

	return nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()

	return nil
}

func isConnectionError(err error) bool {
	var connectErr *pgconn.ConnectError

	return errors.As(err, &connectErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}

func classify(op string, err error) error {
	if isConnectionError(err) {
		return store.ConnectionError(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
