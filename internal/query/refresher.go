package query

import (
	"context"
	"log/slog"
	"time"
)

// RunRefresher refreshes o every interval until ctx is done. The first
// refresh runs immediately. Failures are logged and retried on the next
// tick; the previous generation keeps serving meanwhile.
func RunRefresher(ctx context.Context, o *Orchestrator, interval time.Duration) {
	o.log.Info("refresher running", slog.Duration("interval", interval))
	refreshOnce(ctx, o)

	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("refresher stopped")
			return
		case <-ticker.C:
			refreshOnce(ctx, o)
		}
	}
}

func refreshOnce(ctx context.Context, o *Orchestrator) {
	if _, err := o.Refresh(ctx); err != nil {
		o.log.Warn("scheduled refresh failed (will retry on next interval)", slog.Any("err", err))
	}
}
