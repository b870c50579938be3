package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/log"
	noopLogs "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	noopMetric "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const metricExportPeriod = 15 * time.Second

type Client struct {
	MeterProvider metric.MeterProvider
	LogsProvider  log.LoggerProvider

	shutdowns []func(ctx context.Context) error
}

// New exports metrics and logs to the collector at endpoint. An empty
// endpoint yields a noop client.
func New(ctx context.Context, endpoint, serviceName, serviceVersion, serviceInstanceID string) (*Client, error) {
	if endpoint == "" {
		return NewNoopClient(), nil
	}

	res, err := getResource(ctx, serviceName, serviceVersion, serviceInstanceID)
	if err != nil {
		return nil, err
	}

	metricsExporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricsExporter, sdkmetric.WithInterval(metricExportPeriod))),
		sdkmetric.WithResource(res),
	)

	logsExporter, err := otlploggrpc.New(
		ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		_ = meterProvider.Shutdown(ctx)

		return nil, fmt.Errorf("failed to create logs exporter: %w", err)
	}

	logsProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logsExporter)),
	)

	return &Client{
		MeterProvider: meterProvider,
		LogsProvider:  logsProvider,
		shutdowns:     []func(ctx context.Context) error{meterProvider.Shutdown, logsProvider.Shutdown},
	}, nil
}

func NewNoopClient() *Client {
	return &Client{
		MeterProvider: noopMetric.MeterProvider{},
		LogsProvider:  noopLogs.NewLoggerProvider(),
	}
}

// IsNoop reports whether nothing is exported.
func (c *Client) IsNoop() bool {
	return len(c.shutdowns) == 0
}

func (c *Client) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range c.shutdowns {
		if err := shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to shutdown telemetry: %w", err)
	}

	return nil
}

func getResource(ctx context.Context, serviceName, serviceVersion, serviceInstanceID string) (*resource.Resource, error) {
	attributes := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
		attribute.String("service.instance.id", serviceInstanceID),
		attribute.String("telemetry.sdk.name", "otel"),
		attribute.String("telemetry.sdk.language", "go"),
	}

	hostname, err := os.Hostname()
	if err == nil {
		attributes = append(attributes, attribute.String("host.name", hostname))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attributes...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}
