package metric

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"calplanner/src-server/model"
	"calplanner/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

var collectors = map[string]prometheus.Collector{
	"calplanner_sync_total":                   syncTotal,
	"calplanner_sync_duration_seconds":        syncDuration,
	"calplanner_synced_events_total":          syncedEvents,
	"calplanner_synced_modules_total":         syncedModules,
	"calplanner_exported_events_total":        exportedEvents,
	"calplanner_export_skipped_events_total":  skippedEvents,
	"calplanner_database_empty_read_microsec": databaseEmptyRead,
}

// Register every metric with the default registry and keep the database
// latency gauge fresh until the app shuts down.
func Init(as *utils.AppState) {
	for name, collector := range collectors {
		if err := prometheus.Register(collector); err != nil {
			are := prometheus.AlreadyRegisteredError{}
			if !errors.As(err, &are) {
				slog.Error("can't register metric", "metric", name, "error", err)
				continue
			}
		}
		slog.Debug("metric registered", "metric", name)
	}

	tickerInterval := as.Config.GetMetricCollectionInterval()
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				for name, collector := range collectors {
					if !prometheus.Unregister(collector) {
						slog.Warn("metric not registered", "metric", name)
					}
				}
				slog.Debug("metrics unregistered")
				return
			case <-ticker.C:
				latency, err := database(as)
				if err != nil {
					slog.Error("can't get database latency", "error", err)
					continue
				}
				databaseEmptyRead.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

func database(as *utils.AppState) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if _, err := as.BunDB.NewSelect().
		Model((*model.Calendar)(nil)).
		Where("id = ?", "").
		Exists(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
