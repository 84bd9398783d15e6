package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks one downstream dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	deps map[string]Pinger
}

func NewHandler(deps map[string]Pinger) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health/live", h.LivenessCheck)
	r.GET("/health/ready", h.ReadinessCheck)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now(),
	})
}
