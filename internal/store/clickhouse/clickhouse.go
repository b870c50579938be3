package clickhouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

const (
	createTableQuery = `
CREATE TABLE IF NOT EXISTS host_samples
(
    id           String,
    seq          UInt64,
    cpu_usage    Float64,
    memory_usage Float64,
    disk_usage   Float64,
    timestamp    DateTime64(3, 'UTC')
)
ENGINE = MergeTree
ORDER BY (timestamp, seq)`

	insertSampleQuery = `INSERT INTO host_samples (id, seq, cpu_usage, memory_usage, disk_usage, timestamp)`

	mostRecentSampleQuery = `
SELECT id, seq, cpu_usage, memory_usage, disk_usage, timestamp
FROM host_samples
ORDER BY timestamp DESC, seq DESC
LIMIT 1`
)

type row struct {
	ID          string    `ch:"id"`
	Seq         uint64    `ch:"seq"`
	CPUUsage    float64   `ch:"cpu_usage"`
	MemoryUsage float64   `ch:"memory_usage"`
	DiskUsage   float64   `ch:"disk_usage"`
	Timestamp   time.Time `ch:"timestamp"`
}

type Store struct {
	conn chdriver.Conn

	mu      sync.Mutex
	lastSeq uint64
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(connectionString string) (*Store, error) {
	options, err := clickhouse.ParseDSN(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ClickHouse DSN: %w", err)
	}

	// Only the recorder writes and reads are single row, a small pool is enough.
	options.MaxOpenConns = 3
	options.MaxIdleConns = 1

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	return &Store{conn: conn, now: time.Now}, nil
}

// Migrate creates the samples table if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createTableQuery); err != nil {
		return classify("migrate", err)
	}

	return nil
}

// nextSeq orders inserts that share a timestamp. It is strictly increasing
// for the lifetime of the store.
func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := uint64(s.now().UnixNano())
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq

	return seq
}

func (s *Store) Insert(ctx context.Context, sample models.Sample) error {
	if err := sample.Validate(); err != nil {
		return store.WriteError(err)
	}

	batch, err := s.conn.PrepareBatch(ctx, insertSampleQuery)
	if err != nil {
		return classifyWrite(err)
	}

	err = batch.Append(sample.ID, s.nextSeq(), sample.CPUUsage, sample.MemoryUsage, sample.DiskUsage, sample.Timestamp)
	if err != nil {
		_ = batch.Abort()

		return store.WriteError(err)
	}

	if err := batch.Send(); err != nil {
		return classifyWrite(err)
	}

	return nil
}

func (s *Store) MostRecent(ctx context.Context) (*models.Sample, error) {
	var r row

	err := s.conn.QueryRow(ctx, mostRecentSampleQuery).ScanStruct(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, classify("most recent", err)
	}

	return &models.Sample{
		ID:          r.ID,
		CPUUsage:    r.CPUUsage,
		MemoryUsage: r.MemoryUsage,
		DiskUsage:   r.DiskUsage,
		Timestamp:   r.Timestamp.UTC(),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return store.ConnectionError("ping", err)
	}

	return nil
}

func (s *Store) Close(context.Context) error {
	return s.conn.Close()
}

func isConnectionError(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded)
}

func classify(op string, err error) error {
	if isConnectionError(err) {
		return store.ConnectionError(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func classifyWrite(err error) error {
	if isConnectionError(err) {
		return store.ConnectionError("insert", err)
	}

	return store.WriteError(err)
}
