package cli

import (
	"context"
	"log/slog"
	"time"
)

// logged wraps a menu action so every run is logged with its duration,
// in the manner of an HTTP request logger.
//
//	act = logged("add movie", act)
func logged(name string, act action) action {
	return func(c *CLI, ctx context.Context) error {
		start := time.Now()

		err := act(c, ctx)

		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "menu action completed",
			slog.String("action", name),
			slog.String("user", c.user),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("aborted", err != nil),
		)
		return err
	}
}
