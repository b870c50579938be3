package middleware

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	TimeFormat string
	UTC        bool
}

// LoggingMiddleware logs every request once it has been served.
func LoggingMiddleware(l *zap.Logger, cfg Config) gin.HandlerFunc {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}

	return ginzap.GinzapWithConfig(l, &ginzap.Config{
		TimeFormat: cfg.TimeFormat,
		UTC:        cfg.UTC,
	})
}
