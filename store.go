package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/cfg"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/logger"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/clickhouse"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/memory"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/mongo"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/postgres"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/store/redis"
)

const storeSetupTimeout = 15 * time.Second

// newStore builds the backend selected by the config. A backend that cannot
// be constructed is replaced by store.Unavailable so the API still starts.
func newStore(ctx context.Context, config cfg.Config, l *zap.Logger) store.Store {
	l = l.With(logger.WithStoreDriver(string(config.StoreDriver)))

	s, err := openStore(ctx, config)
	if err != nil {
		l.Error("Failed to create store, serving without a backend", zap.Error(err))

		return store.NewUnavailable(err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, storeSetupTimeout)
	defer cancel()

	if err := prepareStore(setupCtx, s, l); err != nil {
		l.Warn("Failed to prepare store, continuing in degraded mode", zap.Error(err))

		return s
	}

	if err := s.Ping(setupCtx); err != nil {
		l.Warn("Store is not reachable, continuing in degraded mode", zap.Error(err))

		return s
	}

	l.Info("Store connected")

	return s
}

func openStore(ctx context.Context, config cfg.Config) (store.Store, error) {
	switch config.StoreDriver {
	case cfg.StoreDriverMemory:
		return memory.New(), nil
	case cfg.StoreDriverMongo:
		return mongo.New(config.MongoURI)
	case cfg.StoreDriverPostgres:
		return postgres.New(ctx, config.PostgresConnectionString)
	case cfg.StoreDriverClickhouse:
		return clickhouse.New(config.ClickhouseConnectionString)
	case cfg.StoreDriverRedis:
		return redis.New(config.RedisURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}
}

// prepareStore creates the schema or indexes the backend needs.
func prepareStore(ctx context.Context, s store.Store, l *zap.Logger) error {
	switch backend := s.(type) {
	case *mongo.Store:
		return backend.EnsureIndexes(ctx)
	case *postgres.Store:
		results, err := backend.Migrate(ctx)
		if err != nil {
			return err
		}

		for _, result := range results {
			l.Info("Applied migration", zap.String("source", result.Source.Path), zap.Duration("duration", result.Duration))
		}

		return nil
	case *clickhouse.Store:
		return backend.Migrate(ctx)
	default:
		return nil
	}
}
