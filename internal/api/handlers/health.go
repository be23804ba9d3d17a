package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether a dependency answers
type Pinger func(ctx context.Context) error

// HealthHandler reports service and database health
type HealthHandler struct {
	service string
	db      Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service string, db Pinger) *HealthHandler {
	return &HealthHandler{service: service, db: db}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "healthy", "up", http.StatusOK
	if h.db != nil {
		if err := h.db(ctx); err != nil {
			log.Error().Err(err).Msg("database health check failed")
			status, database, code = "unhealthy", "down", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":   status,
		"service":  h.service,
		"database": database,
	})
}
