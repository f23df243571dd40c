package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label of a sync.
const (
	SyncOK          = "ok"
	SyncUnavailable = "unavailable"
	SyncMalformed   = "malformed"
	SyncFailed      = "failed"
)

var (
	syncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calplanner_sync_total",
		Help: "The number of calendar syncs, by outcome",
	}, []string{"result"})
	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calplanner_sync_duration_seconds",
		Help:    "The time taken by a calendar sync, fetch included",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
	syncedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calplanner_synced_events_total",
		Help: "The number of events written by syncs",
	})
	syncedModules = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calplanner_synced_modules_total",
		Help: "The number of modules created or removed by syncs",
	}, []string{"change"})
	exportedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calplanner_exported_events_total",
		Help: "The number of events written to exported feeds",
	})
	skippedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calplanner_export_skipped_events_total",
		Help: "The number of events left out of exported feeds because of an invalid start or end",
	})
	databaseEmptyRead = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "calplanner_database_empty_read_microsec",
		Help: "The latency of an empty database read in microseconds",
	})
)

// Record the outcome of one calendar sync.
func ObserveSync(result string, duration time.Duration) {
	syncTotal.WithLabelValues(result).Inc()
	syncDuration.Observe(duration.Seconds())
}

func AddSyncedEvents(created, modulesCreated, modulesRemoved int) {
	syncedEvents.Add(float64(created))
	syncedModules.WithLabelValues("created").Add(float64(modulesCreated))
	syncedModules.WithLabelValues("removed").Add(float64(modulesRemoved))
}

func AddExportedEvents(written, skipped int) {
	exportedEvents.Add(float64(written))
	skippedEvents.Add(float64(skipped))
}
