package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
)

// Idempotency replays the cached response for a repeated Idempotency-Key
// instead of executing the mutation twice. Requests without the header pass
// through untouched.
func Idempotency(store storage.IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		status, body, ok, err := store.Lookup(c.Context(), key)
		if err != nil {
			slog.Error("idempotency lookup failed", "error", err, "key", key)
			return c.Next()
		}
		if ok {
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// Contention and server errors are retryable; caching them would pin
		// the client to a failure that a retry could have resolved.
		resStatus := c.Response().StatusCode()
		if resStatus == fiber.StatusConflict || resStatus >= fiber.StatusInternalServerError {
			return nil
		}
		resBody := c.Response().Body()
		if err := store.Save(c.Context(), key, resStatus, resBody); err != nil {
			slog.Error("failed to save idempotency key", "error", err, "key", key)
		}
		return nil
	}
}
