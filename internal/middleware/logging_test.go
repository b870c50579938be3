package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	r := gin.New()
	r.Use(ExcludeRoutes(LoggingMiddleware(l, Config{TimeFormat: time.RFC3339Nano, UTC: true}), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics/latest", func(c *gin.Context) { c.JSON(http.StatusOK, nil) })

	return r, logs
}

func TestLoggingMiddlewareLogsRequest(t *testing.T) {
	r, logs := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.Equal(t, "/metrics/latest", fields["path"])
}

func TestExcludeRoutesSkipsHealth(t *testing.T) {
	r, logs := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Zero(t, logs.Len())
}
