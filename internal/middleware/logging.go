package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// RequestIDHeader carries the request id back to the client
const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped logger to the request context and
// logs every completed request
func RequestLogger(base zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		log := base.With().Str("request_id", requestID).Logger()
		c.SetContext(logger.WithContext(c.Context(), log))

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The app error handler renders err after this middleware returns
			status = utils.FromError(err).StatusCode
		}
		event := log.Info()
		if status >= fiber.StatusInternalServerError {
			event = log.Error().Err(err)
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(started)).
			Msg("request completed")
		return err
	}
}
