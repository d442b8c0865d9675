// Package requestlogger logs one structured line per completed HTTP request.
package requestlogger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/middleware/requestcontext"
)

type Config struct {
	// Disable suppresses INFO-level request lines. Errors are still logged.
	Disable bool `env:"DISABLE" envDefault:"false" mapstructure:"disable"`

	// WithRequestHeader includes request headers in the log line, except the
	// ones listed in HiddenRequestHeaders (case-insensitive).
	WithRequestHeader    bool     `env:"REQUEST_HEADER" envDefault:"false" mapstructure:"request_header"`
	HiddenRequestHeaders []string `env:"HIDDEN_REQUEST_HEADERS" mapstructure:"hidden_request_headers"`
}

func New(conf Config) fiber.Handler {
	hidden := make(map[string]struct{}, len(conf.HiddenRequestHeaders))
	for _, h := range conf.HiddenRequestHeaders {
		hidden[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		failed := err != nil || status >= http.StatusInternalServerError
		if conf.Disable && !failed {
			return errors.WithStack(err)
		}

		request := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", requestcontext.GetClientIP(c.UserContext())),
			slog.String("userAgent", string(c.Context().UserAgent())),
			slog.Any("query", c.Queries()),
			slog.Int("length", len(c.Body())),
		}
		if conf.WithRequestHeader {
			var kv []any
			for k, v := range c.GetReqHeaders() {
				if _, ok := hidden[strings.ToLower(k)]; ok {
					continue
				}
				kv = append(kv, slog.Any(k, v))
			}
			request = append(request, slog.Group("header", kv...))
		}

		attrs := []slog.Attr{
			slog.String("event", "api_request"),
			{Key: "request", Value: slog.GroupValue(request...)},
			slog.Int("status", status),
			slog.Int("responseLength", len(c.Response().Body())),
			slog.Int64("latencyMs", latency.Milliseconds()),
		}

		level := slog.LevelInfo
		if failed {
			level = slog.LevelError
			logErr := err
			if logErr == nil {
				logErr = fiber.NewError(status)
			}
			attrs = append(attrs, slog.Any("error", logErr))
		}

		logger.LogAttrs(c.UserContext(), level, "Request completed", attrs...)
		return errors.WithStack(err)
	}
}
