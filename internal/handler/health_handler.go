// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/events"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	config    *config.Config
	manager   *service.ConnectionManager
	bus       *events.EventBus
	hub       *ClientHub
	startTime time.Time
	draining  atomic.Bool
	logger    *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	config *config.Config,
	manager *service.ConnectionManager,
	bus *events.EventBus,
	hub *ClientHub,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		config:    config,
		manager:   manager,
		bus:       bus,
		hub:       hub,
		startTime: time.Now(),
		logger:    utils.NewServiceLogger(logger, "health-handler"),
	}
}

// MarkDraining makes the readiness probe fail while the service shuts down
func (h *HealthHandler) MarkDraining() {
	h.draining.Store(true)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including connection state and stream subscribers
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is shutting down"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	state := h.manager.State()
	connection := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"status": state.Status,
		},
	}
	if state.IsError() {
		// A glove error is a user facing condition, not a service fault
		connection.Message = state.Message
	}
	health.Checks["connection"] = connection

	health.Checks["event_bus"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"subscribers": h.bus.SubscriberCount(),
		},
	}

	if h.hub != nil {
		health.Checks["stream"] = CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"clients": h.hub.Count(),
			},
		}
	}

	statusCode := http.StatusOK
	if h.draining.Load() {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to accept traffic
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.draining.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "shutting down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
