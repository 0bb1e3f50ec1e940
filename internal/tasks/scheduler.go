package tasks

// scheduler.go periodically queues a full republication: the national
// export followed by every department, one task each.
//
// The scheduler is long-running and stops with its context. A failed round
// is logged; the next tick tries again.

import (
	"context"
	"log/slog"
	"time"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

// ScheduleConfig controls the periodic republication.
type ScheduleConfig struct {
	// Interval between rounds. Zero disables the scheduler.
	Interval time.Duration

	// RunOnStart queues a round immediately instead of after one Interval.
	RunOnStart bool
}

// StartScheduler queues every area on each tick until ctx is cancelled.
func StartScheduler(ctx context.Context, q Enqueuer, cfg ScheduleConfig) {
	if cfg.Interval <= 0 {
		slog.Info("publication scheduler disabled")
		return
	}
	slog.Info("publication scheduler started", "interval", cfg.Interval.String())

	if cfg.RunOnStart {
		scheduleRound(ctx, q)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("publication scheduler stopped")
			return
		case <-ticker.C:
			scheduleRound(ctx, q)
		}
	}
}

func scheduleRound(ctx context.Context, q Enqueuer) {
	start := time.Now()
	all := area.All()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.String()
	}

	sent, err := EnqueueAreas(ctx, q, names)
	if err != nil {
		slog.Error("scheduled round failed", "error", err, "enqueued", len(sent), "areas", len(names))
		return
	}
	slog.Info("scheduled round enqueued",
		"tasks", len(sent),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
