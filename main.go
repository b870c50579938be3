package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	limits "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/cfg"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/handlers"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/host"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/logger"
	customMiddleware "github.com/e2b-dev/infra/packages/host-metrics/internal/middleware"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/query"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/recorder"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/telemetry"
)

const (
	serviceVersion = "1.0.0"
	serviceName    = "host-metrics"

	maxReadHeaderTimeout = 5 * time.Second
	maxReadTimeout       = 10 * time.Second
	maxWriteTimeout      = 30 * time.Second
	idleTimeout          = 120 * time.Second

	// Requests only carry a short GraphQL document.
	maxRequestBodySize = 64 << 10

	shutdownDrainDelay = 5 * time.Second
	cleanupTimeout     = 30 * time.Second
)

var commitSHA string

func NewGinServer(ctx context.Context, l *zap.Logger, apiStore *handlers.APIStore, port uint16) *http.Server {
	r := gin.New()

	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	// Allow all origins
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"User-Agent",
		"Accept",
	}
	r.Use(cors.New(corsConfig))

	r.Use(limits.RequestSizeLimiter(maxRequestBodySize))

	r.Use(customMiddleware.ExcludeRoutes(
		customMiddleware.LoggingMiddleware(l, customMiddleware.Config{
			TimeFormat: time.RFC3339Nano,
			UTC:        true,
		}),
		"/health",
	))

	api.RegisterHandlers(r, apiStore)

	return &http.Server{
		Handler: r,
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),

		ReadHeaderTimeout: maxReadHeaderTimeout,
		ReadTimeout:       maxReadTimeout,
		WriteTimeout:      maxWriteTimeout,
		IdleTimeout:       idleTimeout,

		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

// applyFlags overrides the environment configuration with command line flags.
// A zero port keeps the configured one.
func applyFlags(config *cfg.Config, port uint, debug bool) error {
	if port > math.MaxUint16 {
		return fmt.Errorf("port %d is out of range", port)
	}

	if port != 0 {
		config.Port = uint16(port)
	}
	config.Debug = config.Debug || debug

	return nil
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background()) // root context
	defer cancel()

	var (
		port  uint
		debug bool
	)
	flag.UintVar(&port, "port", 0, "Port for the HTTP server, overrides PORT")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging and gin debug mode, overrides DEBUG")
	flag.Parse()

	config, err := cfg.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)

		return 1
	}

	if err := applyFlags(&config, port, debug); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)

		return 1
	}

	serviceInstanceID := uuid.New().String()

	tel, err := telemetry.New(ctx, config.OtelCollectorGRPCEndpoint, serviceName, serviceVersion, serviceInstanceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating telemetry: %v\n", err)

		return 1
	}

	loggerConfig := logger.LoggerConfig{
		ServiceName:   serviceName,
		IsDevelopment: config.IsLocal(),
		IsDebug:       config.Debug,
		InitialFields: []zap.Field{zap.String("service_instance_id", serviceInstanceID)},
	}
	if !tel.IsNoop() {
		loggerConfig.LogsProvider = tel.LogsProvider
	}

	l, err := logger.NewLogger(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)

		return 1
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	l.Info("Starting host metrics service...",
		zap.String("commit_sha", commitSHA),
		zap.String("store_driver", string(config.StoreDriver)),
		zap.Duration("sampling_interval", config.SamplingInterval),
	)

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	var cleanupFns []func(context.Context) error
	exitCode := &atomic.Int32{}
	cleanupOp := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		start := time.Now()

		// cleanups run in reverse registration order so that the recorder
		// stops before the store closes.
		for idx := len(cleanupFns) - 1; idx >= 0; idx-- {
			if err := cleanupFns[idx](ctx); err != nil {
				exitCode.Add(1)
				l.Error("Cleanup operation error", zap.Int("index", idx), zap.Error(err))
			}
		}
		cleanupFns = nil

		l.Info("Cleanup operations completed", zap.Duration("duration", time.Since(start)))
	}
	cleanupOnce := &sync.Once{}
	cleanup := func() { cleanupOnce.Do(cleanupOp) }
	defer cleanup()

	cleanupFns = append(cleanupFns, tel.Shutdown)

	s := newStore(ctx, config, l)
	cleanupFns = append(cleanupFns, s.Close)

	rec, err := recorder.New(
		host.NewSampler(host.WithDiskPath(config.DiskPath)),
		s,
		l.Named("recorder"),
		recorder.WithInterval(config.SamplingInterval),
		recorder.WithMeterProvider(tel.MeterProvider),
		recorder.WithRunOnStart(),
	)
	if err != nil {
		l.Error("Failed to create recorder", zap.Error(err))

		return 1
	}

	if err := rec.Start(ctx); err != nil {
		l.Error("Failed to start recorder", zap.Error(err))

		return 1
	}
	cleanupFns = append(cleanupFns, rec.Stop)

	apiStore := handlers.NewAPIStore(query.NewService(s, config.QueryTimeout, l), l)
	srv := NewGinServer(ctx, l, apiStore, config.Port)

	signalCtx, sigCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer sigCancel()

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	wg.Go(func() {
		defer cancel()

		l.Info("Http service starting", zap.Uint16("port", config.Port))

		err := srv.ListenAndServe()

		switch {
		case errors.Is(err, http.ErrServerClosed):
			l.Info("Http service shutdown successfully", zap.Uint16("port", config.Port))
		case err != nil:
			exitCode.Add(1)
			l.Error("Http service encountered error", zap.Uint16("port", config.Port), zap.Error(err))
		default:
			l.Info("Http service exited without error", zap.Uint16("port", config.Port))
		}
	})

	wg.Go(func() {
		<-signalCtx.Done()

		// Start returning 503s for health checks to signal that the
		// service is shutting down.
		apiStore.Healthy.Store(false)

		if !config.IsLocal() {
			time.Sleep(shutdownDrainDelay)
		}

		if err := srv.Shutdown(ctx); err != nil {
			exitCode.Add(1)
			l.Error("Http service shutdown error", zap.Uint16("port", config.Port), zap.Error(err))
		}
	})

	wg.Wait()

	cleanup()

	return int(exitCode.Load())
}

func main() {
	os.Exit(run())
}
