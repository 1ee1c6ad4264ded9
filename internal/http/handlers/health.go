package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe reports whether one backing dependency is reachable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	probes  []Probe
	timeout time.Duration
}

func NewHealthHandler(probes ...Probe) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second}
}

// HealthCheck answers "ok" when every probe passes, otherwise 503 naming the
// first failing dependency.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	for _, p := range h.probes {
		if p.Check == nil {
			continue
		}
		if err := p.Check(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "unavailable: %s", p.Name)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
