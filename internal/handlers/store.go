package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
)

// MetricsQuerier serves the latest sample to the HTTP layer.
type MetricsQuerier interface {
	GetLatestMetrics(ctx context.Context) (*api.ServerMetrics, error)
	Ping(ctx context.Context) error
}

type APIStore struct {
	Healthy atomic.Bool

	query  MetricsQuerier
	logger *zap.Logger
}

var _ api.ServerInterface = (*APIStore)(nil)

func NewAPIStore(query MetricsQuerier, logger *zap.Logger) *APIStore {
	a := &APIStore{
		query:  query,
		logger: logger,
	}
	a.Healthy.Store(true)

	return a
}

func (a *APIStore) sendAPIStoreError(c *gin.Context, code int, message string) {
	apiErr := api.Error{
		Code:    int32(code),
		Message: message,
	}

	c.Error(errors.New(message))
	c.JSON(code, apiErr)
}

// GetHealth reports 503 once shutdown has started. Store reachability is
// reported but does not fail the check.
func (a *APIStore) GetHealth(c *gin.Context) {
	storeStatus := "up"
	if err := a.query.Ping(c.Request.Context()); err != nil {
		a.logger.Debug("Store ping failed", zap.Error(err))
		storeStatus = "down"
	}

	if a.Healthy.Load() {
		c.JSON(http.StatusOK, api.Health{Status: "healthy", Store: storeStatus})

		return
	}

	c.JSON(http.StatusServiceUnavailable, api.Health{Status: "unhealthy", Store: storeStatus})
}
