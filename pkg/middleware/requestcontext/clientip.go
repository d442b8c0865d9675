package requestcontext

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

type clientIPKey struct{}

type WithClientIPConfig struct {
	// TrustedHeader is a header carrying the verified client IP, set by an
	// edge proxy (e.g. CF-Connecting-IP, X-Real-IP). Takes precedence over
	// everything else when present and valid.
	TrustedHeader string `env:"TRUSTED_HEADER" mapstructure:"trusted_header"`

	// TrustedProxies is a list of CIDR ranges of proxies sitting between the
	// client and this server. The client IP is the right-most entry of
	// X-Forwarded-For that is not inside any of these ranges.
	TrustedProxies []string `env:"TRUSTED_PROXIES" mapstructure:"trusted_proxies"`

	// RejectMalformed returns 403 instead of falling back to the first
	// X-Forwarded-For entry when the proxy chain can't be resolved.
	RejectMalformed bool `env:"REJECT_MALFORMED" envDefault:"false" mapstructure:"reject_malformed"`
}

// WithClientIP resolves the real client IP, with X-Forwarded-For spoofing
// protection when trusted proxy ranges are configured.
func WithClientIP(conf WithClientIPConfig) Option {
	trusted := make([]netip.Prefix, 0, len(conf.TrustedProxies))
	for _, cidr := range conf.TrustedProxies {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			logger.Panic("Invalid trusted proxy CIDR", slogx.String("cidr", cidr), slogx.Error(err))
		}
		trusted = append(trusted, prefix)
	}

	isProxy := func(raw string) bool {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return false
		}
		return lo.SomeBy(trusted, func(p netip.Prefix) bool { return p.Contains(addr) })
	}

	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		if conf.TrustedHeader != "" {
			if raw := c.Get(conf.TrustedHeader); raw != "" {
				if _, err := netip.ParseAddr(raw); err == nil {
					return context.WithValue(ctx, clientIPKey{}, raw), nil
				}
			}
		}

		forwarded := c.IPs()
		if len(forwarded) == 0 {
			// Direct connection, the remote address is the client.
			return context.WithValue(ctx, clientIPKey{}, c.IP()), nil
		}

		if len(trusted) > 0 {
			for i := len(forwarded) - 1; i >= 0; i-- {
				if !isProxy(forwarded[i]) {
					return context.WithValue(ctx, clientIPKey{}, forwarded[i]), nil
				}
			}
			// Whole chain is our own proxies; the left-most entry is the best guess.
			return context.WithValue(ctx, clientIPKey{}, forwarded[0]), nil
		}

		if conf.RejectMalformed {
			logger.WarnContext(ctx, "Rejecting request with unresolvable forwarded chain",
				slogx.String("remoteIP", c.IP()),
				slogx.Any("forwarded", forwarded),
			)
			return nil, errors.WithStack(rejection{status: http.StatusForbidden, reason: "not allowed to access"})
		}

		return context.WithValue(ctx, clientIPKey{}, forwarded[0]), nil
	}
}

// GetClientIP returns the client IP stored by WithClientIP, or "" when the
// middleware did not run for this request.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
