package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/query"
)

// GetMetricsLatest responds with the most recent sample, or JSON null when
// nothing has been recorded yet.
func (a *APIStore) GetMetricsLatest(c *gin.Context) {
	metrics, err := a.query.GetLatestMetrics(c.Request.Context())
	if err != nil {
		if errors.Is(err, query.ErrBackendUnavailable) {
			a.sendAPIStoreError(c, http.StatusServiceUnavailable, "Metrics backend is unavailable")

			return
		}

		a.logger.Error("Error when getting latest metrics", zap.Error(err))
		a.sendAPIStoreError(c, http.StatusInternalServerError, "Error when getting latest metrics")

		return
	}

	c.JSON(http.StatusOK, metrics)
}
