package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/taxsyncpro/taxsync/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an id, stores a request-scoped
// logger in the user context and logs the outcome.
func requestLogger(base *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Set(requestIDHeader, requestID)

		reqLogger := base.With("request_id", requestID)
		ctx := logger.WithRequestID(c.UserContext(), requestID)
		c.SetUserContext(logger.WithLogger(ctx, reqLogger))

		err := c.Next()
		if err != nil {
			// Let the error handler write the response so the status is known.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		reqLogger.Log(c.UserContext(), level, "http_request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", c.IP(),
		)
		return nil
	}
}
