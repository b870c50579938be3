package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e2b-dev/infra/packages/host-metrics/internal/api"
	"github.com/e2b-dev/infra/packages/host-metrics/internal/graphql"
)

const (
	latestMetricsField = "getLatestMetrics"
	typenameField      = "__typename"
)

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

type graphqlResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []graphqlError `json:"errors,omitempty"`
}

// metricsFields resolves every ServerMetrics field a client may select.
var metricsFields = map[string]func(api.ServerMetrics) any{
	"id":          func(m api.ServerMetrics) any { return m.ID },
	"cpuUsage":    func(m api.ServerMetrics) any { return m.CPUUsage },
	"memoryUsage": func(m api.ServerMetrics) any { return m.MemoryUsage },
	"diskUsage":   func(m api.ServerMetrics) any { return m.DiskUsage },
	"timestamp":   func(m api.ServerMetrics) any { return m.Timestamp },
	typenameField: func(api.ServerMetrics) any { return "ServerMetrics" },
}

// PostGraphql answers the dashboard's getLatestMetrics query. Only queries
// are accepted, the write path is not exposed.
func (a *APIStore) PostGraphql(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// the body size limiter has already answered
		if c.IsAborted() {
			return
		}

		sendGraphqlError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %s", err))

		return
	}

	op, err := graphql.Prepare(req.Query, req.OperationName, req.Variables)
	if err != nil {
		sendGraphqlError(c, http.StatusBadRequest, err.Error())

		return
	}

	resp := graphqlResponse{Data: make(map[string]any, len(op.Selections))}

	for _, field := range op.Selections {
		key := field.ResponseKey()

		switch field.Name {
		case typenameField:
			resp.Data[key] = "Query"

			continue
		case latestMetricsField:
		default:
			sendGraphqlError(c, http.StatusBadRequest, fmt.Sprintf("field %q is not supported", field.Name))

			return
		}

		metrics, err := a.query.GetLatestMetrics(c.Request.Context())
		if err != nil {
			c.Error(err)
			resp.Data[key] = nil
			resp.Errors = append(resp.Errors, graphqlError{Message: "Metrics backend is unavailable", Path: []string{key}})

			continue
		}

		if metrics == nil {
			resp.Data[key] = nil

			continue
		}

		resp.Data[key] = selectMetrics(*metrics, field.Selections)
	}

	c.JSON(http.StatusOK, resp)
}

func selectMetrics(metrics api.ServerMetrics, selections []graphql.Field) map[string]any {
	out := make(map[string]any, len(selections))
	for _, sub := range selections {
		out[sub.ResponseKey()] = metricsFields[sub.Name](metrics)
	}

	return out
}

func sendGraphqlError(c *gin.Context, code int, message string) {
	c.Error(errors.New(message))
	c.JSON(code, graphqlResponse{Errors: []graphqlError{{Message: message}}})
}
