package logger

import (
	"fmt"
	"log/slog"

	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

// errorAttrReplacer expands error attrs into a group with the plain message
// and the cockroachdb verbose rendering (with wrap chain and stack trace).
func errorAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || (attr.Key != slogx.ErrorKey && attr.Key != "err") {
		return attr
	}

	err, ok := attr.Value.Any().(error)
	if !ok || err == nil {
		return attr
	}

	return slog.Group(attr.Key,
		slog.String("message", err.Error()),
		slog.String("verbose", fmt.Sprintf("%+v", err)),
	)
}
