package workers

import (
	"context"
	"log/slog"
	"time"

	"planning-poker/observability"
)

// HeartbeatWorker periodically refreshes and logs the server stats.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.monitoring.Refresh()
			w.log.Info("Heartbeat",
				"connections", stats.Connections,
				"commands_applied", stats.CommandsApplied,
				"commands_rejected", stats.CommandsRejected,
				"events_dropped", stats.EventsDropped,
				"command_rate", stats.CommandRate,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"goroutines", stats.Goroutines,
			)
		}
	}
}
