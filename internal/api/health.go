// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/respond"
)

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 2 * time.Second

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
type HealthDependencies struct {
	// CheckDatabase pings the PostgreSQL pool. A failure makes the service unready.
	CheckDatabase func(ctx context.Context) error

	// CheckCache pings Redis. A failure is reported but never makes the
	// service unready, since requests fall back to the database.
	CheckCache func(ctx context.Context) error
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

type checkResult struct {
	Name     string `json:"name"`
	IsOK     bool   `json:"ok"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, map[string]string{"status": "ok"})
}

// readiness handles GET /ready (Readiness probe).
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	results := make([]checkResult, 0, 2)

	if check := handler.dependencies.CheckDatabase; check != nil {
		results = append(results, handler.probe(request.Context(), "postgres", true, check))
	}
	if check := handler.dependencies.CheckCache; check != nil {
		results = append(results, handler.probe(request.Context(), "redis", false, check))
	}

	status, httpStatus := "ready", http.StatusOK
	for _, result := range results {
		switch {
		case result.IsOK:
		case result.Required:
			status, httpStatus = "unavailable", http.StatusServiceUnavailable
		case httpStatus == http.StatusOK:
			status = "degraded"
		}
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		"status": status,
		"checks": results,
	}})
}

func (handler *healthHandler) probe(parent context.Context, name string, required bool, check func(context.Context) error) checkResult {
	ctx, cancel := context.WithTimeout(parent, readinessTimeout)
	defer cancel()

	result := checkResult{Name: name, IsOK: true, Required: required}
	if err := check(ctx); err != nil {
		result.IsOK = false
		result.Error = err.Error()
		handler.logger.Error("readiness_check_failed", slog.String("dependency", name), slog.Any("error", err))
	}
	return result
}
