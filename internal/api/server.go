package api

import "github.com/gin-gonic/gin"

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(c *gin.Context)
	// (GET /metrics/latest)
	GetMetricsLatest(c *gin.Context)
	// (POST /graphql)
	PostGraphql(c *gin.Context)
}

// RegisterHandlers creates http.Handler with routing matching the service routes.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	router.GET("/health", si.GetHealth)
	router.GET("/metrics/latest", si.GetMetricsLatest)
	router.POST("/graphql", si.PostGraphql)
}
