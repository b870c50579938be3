package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
)

const latestMetricsPath = "/metrics/latest"

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// Client fetches the latest sample from a running host-metrics service.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
}

func NewClient(baseURL string, retry RetryConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: scheme must be http or https", baseURL)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(retry.MaxAttempts-1, 0)
	client.RetryWaitMin = retry.InitialBackoff
	client.RetryWaitMax = retry.MaxBackoff
	client.Logger = leveledLogger{logger.Sugar()}

	return &Client{
		http:     client,
		endpoint: base.JoinPath(latestMetricsPath).String(),
	}, nil
}

// FetchLatest returns the latest sample, or nil when the service has none yet.
func (c *Client) FetchLatest(ctx context.Context) (*api.ServerMetrics, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest metrics: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.Error
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, apiErr.Message)
		}

		return nil, fmt.Errorf("service returned %d", resp.StatusCode)
	}

	var metrics *api.ServerMetrics
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode latest metrics: %w", err)
	}

	return metrics, nil
}

// leveledLogger routes retryablehttp logs through zap.
type leveledLogger struct {
	l *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, keysAndValues ...any) { l.l.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...any)  { l.l.Infow(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...any) { l.l.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...any)  { l.l.Warnw(msg, keysAndValues...) }
