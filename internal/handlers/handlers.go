// Package handlers exposes the operational HTTP API: health, audit log
// queries, the routing table and scheduler control.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mail-triage-go/internal/routing"
	"mail-triage-go/internal/scheduler"
	"mail-triage-go/internal/store"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store     *store.Store
	table     *routing.Table
	scheduler *scheduler.Scheduler
}

// NewHandlers creates new HTTP handlers
func NewHandlers(s *store.Store, table *routing.Table, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{store: s, table: table, scheduler: sched}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Audit records
		api.GET("/logs", h.GetLogs)
		api.GET("/skips", h.GetSkips)

		// Routing table (read-only, loaded from config)
		api.GET("/routes", h.GetRoutes)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthResponse is the healthz payload
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics"`
}

// ErrorResponse is the error payload for API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
