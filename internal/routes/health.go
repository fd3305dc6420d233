package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints. Backends
// that are not configured report "disabled".
func RegisterHealthRoutes(router *fiber.App, db *pgxpool.Pool, cache *redis.Client) {
	router.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "disabled"
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		healthy := true
		if db != nil {
			dbStatus = "ok"
			if err := db.Ping(ctx); err != nil {
				dbStatus = err.Error()
				healthy = false
			}
		}
		if cache != nil {
			redisStatus = "ok"
			if err := cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
				healthy = false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
