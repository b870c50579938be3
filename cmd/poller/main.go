package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/logger"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/poller"
)

const serviceName = "host-metrics-poller"

func main() {
	var (
		serviceURL string
		interval   time.Duration
		window     int
		debug      bool
	)
	flag.StringVar(&serviceURL, "url", "http://localhost:4000", "Base URL of the host metrics service")
	flag.DurationVar(&interval, "interval", poller.DefaultInterval, "Poll interval")
	flag.IntVar(&window, "window", poller.DefaultWindowSize, "Number of samples kept on screen")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	l, err := logger.NewLogger(logger.LoggerConfig{
		ServiceName: serviceName,
		IsDebug:     debug,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	client, err := poller.NewClient(serviceURL, poller.DefaultRetryConfig, l)
	if err != nil {
		l.Fatal("Invalid service URL", zap.Error(err))
	}

	render := func(samples []api.ServerMetrics) {
		fmt.Fprintln(os.Stdout)
		if err := poller.WriteTable(os.Stdout, samples, time.Local); err != nil {
			l.Error("Failed to render metrics", zap.Error(err))
		}
	}

	p, err := poller.New(client, render, l, poller.WithInterval(interval), poller.WithWindowSize(window))
	if err != nil {
		l.Fatal("Failed to create poller", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	l.Info("Polling host metrics", zap.String("url", serviceURL), zap.Duration("interval", interval))

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("Poller stopped", zap.Error(err))
	}
}
