// Package jobrunner implements the universal job wrapper: any panic or
// error raised inside a scheduled job is caught, logged with a stack
// trace where applicable, and discarded. It never propagates to the
// scheduler loop, so one failing job never stalls the others.
package jobrunner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Run executes fn, recovering any panic and logging any returned error.
// It never returns an error itself — the caller (the scheduler's pool)
// can fire-and-forget.
func Run(ctx context.Context, logger *slog.Logger, jobName string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked",
				"job", jobName,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		logger.Error("job failed", "job", jobName, "error", err)
	}
}
