package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit writes one structured record per request. Authenticated calls carry
// the caller address; handler errors are logged with the status fiber will
// send for them.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if reqID, _ := c.Locals(RequestIDLocal).(string); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		if caller, _ := c.Locals(LocalCaller).(string); caller != "" {
			attrs = append(attrs, slog.String("caller", caller))
		}
		switch {
		case err == nil:
			logger.Info("request completed", attrs...)
		case status >= fiber.StatusInternalServerError:
			logger.Error("request failed", append(attrs, slog.Any("error", err))...)
		default:
			logger.Warn("request rejected", append(attrs, slog.Any("error", err))...)
		}
		return err
	}
}
