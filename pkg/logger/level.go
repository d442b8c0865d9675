package logger

import (
	"fmt"
	"log/slog"
)

// Levels above slog.LevelError, in severity order.
const (
	LevelCritical = slog.Level(12)
	LevelPanic    = slog.Level(14)
	LevelFatal    = slog.Level(16)
)

var customLevelNames = []struct {
	level slog.Level
	name  string
}{
	{LevelFatal, "FATAL"},
	{LevelPanic, "PANIC"},
	{LevelCritical, "CRITICAL"},
}

// levelAttrReplacer renames the custom levels in output, keeping slog's
// "NAME+offset" convention for in-between values.
func levelAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || attr.Key != slog.LevelKey {
		return attr
	}
	l, ok := attr.Value.Any().(slog.Level)
	if !ok || l < LevelCritical {
		return attr
	}
	for _, custom := range customLevelNames {
		if l >= custom.level {
			name := custom.name
			if offset := l - custom.level; offset != 0 {
				name = fmt.Sprintf("%s%+d", name, offset)
			}
			attr.Value = slog.StringValue(name)
			return attr
		}
	}
	return attr
}
