package requestcontext

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberutils "github.com/gofiber/fiber/v2/utils"

	"github.com/veil-network/pool-scanner/pkg/logger"
)

type requestIdKey struct{}

// WithRequestId propagates the request id set by the requestid middleware
// into the user context and the context logger. Requests arriving without an
// id get a generated one, echoed back on the response header.
func WithRequestId() Option {
	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		if id == "" {
			id = c.Get(requestid.ConfigDefault.Header)
			if id == "" {
				id = fiberutils.UUID()
			}
			c.Set(requestid.ConfigDefault.Header, id)
			c.Locals(requestid.ConfigDefault.ContextKey, id)
		}
		ctx = context.WithValue(ctx, requestIdKey{}, id)
		return logger.WithContext(ctx, "requestId", id), nil
	}
}

// GetRequestId returns the request id stored by WithRequestId, or "" when the
// middleware did not run for this request.
func GetRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey{}).(string)
	return id
}
