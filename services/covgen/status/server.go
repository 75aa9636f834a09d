// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package status serves run progress over HTTP during long pipeline runs.
//
// The server is read-only: it reports the tracker's live progress, fetches
// journaled reports, and exposes the Prometheus /metrics endpoint when the
// telemetry stack is active. It never mutates the run.
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/pipeline"
	"github.com/AleutianAI/covgen/services/covgen/report"
	"github.com/AleutianAI/covgen/services/covgen/store"
	"github.com/AleutianAI/covgen/services/covgen/telemetry"
)

// ServiceVersion is the status server version.
const ServiceVersion = "0.1.0"

// ErrNilContext indicates a nil context was passed to Run.
var ErrNilContext = errors.New("context cannot be nil")

// =============================================================================
// SOURCES
// =============================================================================

// ProgressSource yields the live progress of the current run.
type ProgressSource interface {
	Snapshot() pipeline.Progress
}

// ReportSource reads journaled runs.
type ReportSource interface {
	LoadReport(ctx context.Context, session string) (*report.RunReport, error)
	Sessions(ctx context.Context) ([]string, error)
}

// OracleStatus exposes the oracle client's health counters.
type OracleStatus interface {
	Model() string
	Calls() int64
	BreakerState() string
}

// Deps are the read-only sources the server exposes. Any of them may be nil;
// the matching endpoints then answer 503.
type Deps struct {
	Progress ProgressSource
	Reports  ReportSource
	Oracle   OracleStatus
}

// =============================================================================
// RESPONSES
// =============================================================================

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// OracleInfo summarizes the oracle client inside a status response.
type OracleInfo struct {
	Model   string `json:"model"`
	Calls   int64  `json:"calls"`
	Breaker string `json:"breaker"`
}

// StatusResponse answers GET /v1/covgen/status.
type StatusResponse struct {
	pipeline.Progress
	Oracle *OracleInfo `json:"oracle,omitempty"`
}

// RunListResponse answers GET /v1/covgen/runs.
type RunListResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the read-only status endpoint for covgen runs.
//
// Thread Safety: Safe for concurrent use; handlers only read from their
// sources.
type Server struct {
	engine *gin.Engine
	deps   Deps
	log    *logging.Logger
}

// NewServer builds the server and registers its routes.
//
// Description:
//
//	Wires the gin engine with recovery and OpenTelemetry middleware and
//	registers the health, status, run, and metrics routes. The /metrics
//	route is only registered when the Prometheus exporter is active, so
//	telemetry.Init must run first for metrics to be served.
//
// Inputs:
//
//	d - Progress, report, and oracle sources. Nil members disable their
//	endpoints with 503 responses.
//	log - Logger. Nil uses the default logger.
//
// Outputs:
//
//	*Server - Ready to Run or to serve via Handler.
func NewServer(d Deps, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		deps:   d,
		log:    log,
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(otelgin.Middleware("covgen"))

	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1/covgen")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:session/report", s.handleGetReport)
	}

	if h := telemetry.MetricsHandler(); h != nil {
		s.engine.GET("/metrics", gin.WrapH(h))
	}

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if ctx == nil {
		return ErrNilContext
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("Status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.log.Info("Status server stopped")
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// handleHealth handles GET /health. Always 200 while the process runs.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// handleStatus handles GET /v1/covgen/status.
//
// Response:
//
//	200 OK: StatusResponse with the tracker snapshot and oracle counters.
//	503 Service Unavailable: no run is attached to this server.
func (s *Server) handleStatus(c *gin.Context) {
	if s.deps.Progress == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no run attached",
			Code:  "UNAVAILABLE",
		})
		return
	}

	resp := StatusResponse{Progress: s.deps.Progress.Snapshot()}
	if s.deps.Oracle != nil {
		resp.Oracle = &OracleInfo{
			Model:   s.deps.Oracle.Model(),
			Calls:   s.deps.Oracle.Calls(),
			Breaker: s.deps.Oracle.BreakerState(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleListRuns handles GET /v1/covgen/runs.
//
// Response:
//
//	200 OK: RunListResponse of journaled sessions.
//	500 Internal Server Error: journal read failure.
//	503 Service Unavailable: no journal configured.
func (s *Server) handleListRuns(c *gin.Context) {
	if s.deps.Reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no journal configured",
			Code:  "UNAVAILABLE",
		})
		return
	}

	sessions, err := s.deps.Reports.Sessions(c.Request.Context())
	if err != nil {
		s.log.Error("Failed to list journaled runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list runs",
			Code:  "JOURNAL_READ_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, RunListResponse{Sessions: sessions, Count: len(sessions)})
}

// handleGetReport handles GET /v1/covgen/runs/:session/report.
//
// Response:
//
//	200 OK: report.RunReport
//	404 Not Found: session has no journaled report.
//	500 Internal Server Error: journal read failure.
//	503 Service Unavailable: no journal configured.
func (s *Server) handleGetReport(c *gin.Context) {
	if s.deps.Reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no journal configured",
			Code:  "UNAVAILABLE",
		})
		return
	}

	session := c.Param("session")
	rep, err := s.deps.Reports.LoadReport(c.Request.Context(), session)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("no report for session %s", session),
			Code:  "NOT_FOUND",
		})
		return
	}
	if err != nil {
		s.log.Error("Failed to load report", "session", session, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load report",
			Code:  "JOURNAL_READ_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, rep)
}
