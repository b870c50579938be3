package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/models"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
)

const (
	DefaultKeyPrefix = "host_metrics"

	memberSeparator = "|"
)

// insertScript allocates the next sequence number and appends the sample in a
// single atomic step. The zero padded sequence prefix makes members with an
// equal score sort by insertion order.
var insertScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], ARGV[1], string.format('%020d', seq) .. '|' .. ARGV[2])
return seq
`)

type Store struct {
	client *redis.Client
	setKey string
	seqKey string
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.setKey = prefix + ":samples"
		s.seqKey = prefix + ":seq"
	}
}

func New(url string, options ...Option) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	s := &Store{client: redis.NewClient(opts)}
	WithKeyPrefix(DefaultKeyPrefix)(s)

	for _, option := range options {
		option(s)
	}

	return s, nil
}

func (s *Store) Insert(ctx context.Context, sample models.Sample) error {
	if err := sample.Validate(); err != nil {
		return store.WriteError(err)
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return store.WriteError(err)
	}

	score := sample.Timestamp.UnixMilli()

	err = insertScript.Run(ctx, s.client, []string{s.setKey, s.seqKey}, score, string(payload)).Err()
	if err != nil {
		if isConnectionError(err) {
			return store.ConnectionError("insert", err)
		}

		return store.WriteError(err)
	}

	return nil
}

func (s *Store) MostRecent(ctx context.Context) (*models.Sample, error) {
	members, err := s.client.ZRevRange(ctx, s.setKey, 0, 0).Result()
	if err != nil {
		if isConnectionError(err) {
			return nil, store.ConnectionError("most recent", err)
		}

		return nil, fmt.Errorf("most recent: %w", err)
	}

	if len(members) == 0 {
		return nil, nil
	}

	_, payload, found := strings.Cut(members[0], memberSeparator)
	if !found {
		return nil, fmt.Errorf("most recent: malformed member %q", members[0])
	}

	var sample models.Sample
	if err := json.Unmarshal([]byte(payload), &sample); err != nil {
		return nil, fmt.Errorf("most recent: decoding sample: %w", err)
	}

	sample.Timestamp = sample.Timestamp.UTC()

	return &sample, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return store.ConnectionError("ping", err)
	}

	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

func isConnectionError(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
