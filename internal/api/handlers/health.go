package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/slots"
)

// DatabasePinger defines the interface for database health checking.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

const healthCheckTimeout = 5 * time.Second

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not configured"
)

// HealthHandler handles the health endpoint.
type HealthHandler struct {
	database  DatabasePinger
	slots     *slots.Limiter
	logger    *logging.Logger
	version   string
	startTime time.Time
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	Scans     *slots.Stats      `json:"scans,omitempty"`
}

// NewHealthHandler creates a new health handler. database and limiter may be nil.
func NewHealthHandler(database DatabasePinger, limiter *slots.Limiter, logger *logging.Logger, version string) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{
		database:  database,
		slots:     limiter,
		logger:    logger.WithComponent("api.health"),
		version:   version,
		startTime: time.Now(),
	}
}

// Health handles GET /api/v1/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := StatusHealthy
	checks := map[string]string{"engine": "ok"}

	if h.database == nil {
		checks["database"] = StatusNotConfigured
	} else if err := h.database.Ping(ctx); err != nil {
		h.logger.ErrorDatabase("Health check ping failed", err)
		status = StatusUnhealthy
		checks["database"] = StatusUnhealthy
	} else {
		checks["database"] = "ok"
	}

	code := http.StatusOK
	if status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
	if h.slots != nil {
		stats := h.slots.Stats()
		resp.Scans = &stats
	}

	writeJSON(w, r, code, resp)
}
