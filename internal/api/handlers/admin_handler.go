package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/services"
)

type AdminHandler struct {
	cleanup services.CleanupService
}

func NewAdminHandler(cleanup services.CleanupService) *AdminHandler {
	return &AdminHandler{cleanup: cleanup}
}

func (h *AdminHandler) Cleanup(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	rep, err := h.cleanup.Run(c.Request.Context(), time.Now(), dryRun)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// HealthCheck reports an error when a dependency is unreachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": out})
}
