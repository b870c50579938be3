package cfg

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type StoreDriver string

const (
	StoreDriverMemory     StoreDriver = "memory"
	StoreDriverMongo      StoreDriver = "mongo"
	StoreDriverPostgres   StoreDriver = "postgres"
	StoreDriverClickhouse StoreDriver = "clickhouse"
	StoreDriverRedis      StoreDriver = "redis"
)

type Config struct {
	// Port of the query API. The dashboard client historically expected 4040,
	// set PORT accordingly when deploying next to it.
	Port uint16 `env:"PORT" envDefault:"4000"`

	StoreDriver StoreDriver `env:"STORE_DRIVER" envDefault:"mongo"`

	MongoURI                   string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/devops_dashboard"`
	PostgresConnectionString   string `env:"POSTGRES_CONNECTION_STRING"`
	ClickhouseConnectionString string `env:"CLICKHOUSE_CONNECTION_STRING"`
	RedisURL                   string `env:"REDIS_URL"`

	SamplingInterval time.Duration `env:"SAMPLING_INTERVAL" envDefault:"60s"`
	QueryTimeout     time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`
	DiskPath         string        `env:"DISK_PATH" envDefault:"/"`

	OtelCollectorGRPCEndpoint string `env:"OTEL_COLLECTOR_GRPC_ENDPOINT"`

	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
}

func Parse() (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return config, err
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("SAMPLING_INTERVAL must be positive, got %s", c.SamplingInterval)
	}

	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}

	required := map[StoreDriver]struct {
		key   string
		value string
	}{
		StoreDriverMongo:      {"MONGO_URI", c.MongoURI},
		StoreDriverPostgres:   {"POSTGRES_CONNECTION_STRING", c.PostgresConnectionString},
		StoreDriverClickhouse: {"CLICKHOUSE_CONNECTION_STRING", c.ClickhouseConnectionString},
		StoreDriverRedis:      {"REDIS_URL", c.RedisURL},
	}

	if c.StoreDriver == StoreDriverMemory {
		return nil
	}

	conn, ok := required[c.StoreDriver]
	if !ok {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if conn.value == "" {
		return fmt.Errorf("environment variable %q is required for store driver %q", conn.key, c.StoreDriver)
	}

	return nil
}

func (c Config) IsLocal() bool {
	return c.Environment == "local"
}
