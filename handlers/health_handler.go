package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is anything with a connectivity check. pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db      Pinger
	redis   *redis.Client
	version string
	logger  *zap.SugaredLogger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db Pinger, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redisClient,
		version: version,
		logger:  logger.GetLogger().Named("health_handler"),
	}
}

// LivenessCheck reports that the process is up.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessCheck reports whether the service's backends are reachable.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warnw("Database ping failed", "error", err)
			components["database"] = "down"
			healthy = false
		} else {
			components["database"] = "up"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.logger.Warnw("Redis ping failed", "error", err)
			components["redis"] = "down"
			healthy = false
		} else {
			components["redis"] = "up"
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"version":    h.version,
		"components": components,
	})
}
