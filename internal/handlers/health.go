package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/covidroom/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout bounds the engine ping and table check
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is the part of the query engine the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker reports which required tables are not loaded.
type ReadinessChecker interface {
	Readiness(ctx context.Context) ([]string, error)
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	engine    Pinger
	tables    ReadinessChecker
	startTime time.Time
	env       string
	dialect   string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(engine Pinger, tables ReadinessChecker, env, dialect string) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		tables:    tables,
		startTime: time.Now(),
		env:       env,
		dialect:   dialect,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status  string   `json:"status"`
	Engine  string   `json:"engine"`
	Tables  string   `json:"tables"`
	Missing []string `json:"missing,omitempty"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Engine      string `json:"engine"`
	Uptime      string `json:"uptime"`
}

// Health handles GET /health.
// It checks no dependencies and is used for liveness probes.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /health/ready.
// Returns 200 once the engine answers and every chart table is loaded,
// 503 Service Unavailable otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	log := middleware.GetLogger(c)

	if err := h.engine.Ping(ctx); err != nil {
		if log != nil {
			log.Error("Engine health check failed", err, map[string]interface{}{
				"timeout": HealthCheckTimeout.String(),
			})
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Engine: "disconnected",
			Tables: "unknown",
		})
		return
	}

	missing, err := h.tables.Readiness(ctx)
	if err != nil {
		if log != nil {
			log.Error("Table readiness check failed", err, nil)
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Engine: "connected",
			Tables: "unknown",
		})
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:  "not_ready",
			Engine:  "connected",
			Tables:  "loading",
			Missing: missing,
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status: "ready",
		Engine: "connected",
		Tables: "loaded",
	})
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Engine:      h.dialect,
		Uptime:      formatUptime(time.Since(h.startTime)),
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
