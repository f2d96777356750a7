package logger

import (
	"fmt"
	"log/slog"
	"time"
)

var nowFn = time.Now

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// argsToAttrs converts slog's loosely-typed key/value varargs (or
// slog.Attr values) into a slice of slog.Attr, the shape
// Handler.WithAttrs expects.
func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case slog.Attr:
			attrs = append(attrs, v)
		default:
			if i+1 < len(args) {
				attrs = append(attrs, slog.Any(fmt.Sprint(v), args[i+1]))
				i++
			} else {
				attrs = append(attrs, slog.Any("!BADKEY", v))
			}
		}
	}
	return attrs
}
