package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness probe checks.
type Pinger func(ctx context.Context) error

// Dependency is one backend the service talks to. Only required ones make the service unready;
// the rest (redis fan-out, rate limiting) degrade to local fallbacks.
type Dependency struct {
	Name     string
	Ping     Pinger
	Required bool
}

type HealthHandler struct {
	deps    []Dependency
	started time.Time
	version string
}

func NewHealthHandler(version string, deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps, started: time.Now(), version: version}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness only says the process is serving.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings every dependency and reports each one.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, ready := h.run(ctx, false)
	status, code := "healthy", http.StatusOK
	if !ready {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health checks required dependencies only, for load balancers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if _, ready := h.run(ctx, true); !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *HealthHandler) run(ctx context.Context, requiredOnly bool) (map[string]string, bool) {
	checks := make(map[string]string, len(h.deps))
	ready := true
	for _, d := range h.deps {
		if requiredOnly && !d.Required {
			continue
		}
		err := d.Ping(ctx)
		switch {
		case err == nil:
			checks[d.Name] = "healthy"
		case d.Required:
			checks[d.Name] = "unhealthy: " + err.Error()
			ready = false
		default:
			checks[d.Name] = "degraded: " + err.Error()
		}
	}
	return checks, ready
}
