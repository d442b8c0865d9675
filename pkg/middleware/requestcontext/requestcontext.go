// Package requestcontext enriches the request's user context with values
// extracted from the incoming request (request id, client IP) so that
// downstream handlers and the context logger can use them.
package requestcontext

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

// Option extracts one value from the request and returns the enriched context.
type Option func(ctx context.Context, c *fiber.Ctx) (context.Context, error)

// rejection aborts the request with a specific status instead of 500.
type rejection struct {
	status int
	reason string
}

func (r rejection) Error() string { return r.reason }

// New applies all options in order and stores the resulting context on the
// fiber request before calling the next handler.
func New(opts ...Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for _, opt := range opts {
			next, err := opt(ctx, c)
			if err != nil {
				var rej rejection
				if errors.As(err, &rej) {
					return c.Status(rej.status).JSON(fiber.Map{"error": rej.reason})
				}
				logger.ErrorContext(ctx, "Failed to build request context", slogx.Error(err))
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
			}
			ctx = next
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}
