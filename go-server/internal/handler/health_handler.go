package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthHandler struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewHealthHandler(db *pgxpool.Pool, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redisClient: redisClient}
}

// Healthz reports liveness of the process and its backing stores.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	postgres := "ok"
	if err := h.db.Ping(ctx); err != nil {
		postgres = err.Error()
		status = http.StatusServiceUnavailable
	}

	cache := "ok"
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		cache = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"postgres": postgres,
		"redis":    cache,
	})
}
