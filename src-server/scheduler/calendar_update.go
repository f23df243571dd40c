package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/utils"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

const (
	WORKER_COUNT = 4
)

type Summary struct {
	Synced int
	Failed int
}

// Sync every calendar with an http(s) feed through WORKER_COUNT workers.
// A failing calendar is logged by the engine and counted; the others carry on.
func SyncAll(ctx context.Context, db bun.IDB, engine *reconcile.Engine) (Summary, error) {
	calendars, err := model.ListAllCalendars(ctx, db)
	if err != nil {
		return Summary{}, err
	}
	if len(calendars) == 0 {
		return Summary{}, nil
	}

	jobs := make(chan model.Calendar, len(calendars))
	var wg sync.WaitGroup
	var synced, failed atomic.Int64

	for range WORKER_COUNT {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for calendar := range jobs {
				if ctx.Err() != nil {
					failed.Add(1)
					continue
				}
				if _, err := engine.Sync(ctx, calendar.ID); err != nil {
					failed.Add(1)
					continue
				}
				synced.Add(1)
			}
		}()
	}

	for _, calendar := range calendars {
		jobs <- calendar
	}
	close(jobs)
	wg.Wait()

	return Summary{Synced: int(synced.Load()), Failed: int(failed.Load())}, ctx.Err()
}

// Run SyncAll on the configured schedule until the app shuts down. An empty
// schedule disables it.
func CalendarUpdate(as *utils.AppState, engine *reconcile.Engine) error {
	schedule := as.Config.GetSyncSchedule()
	if schedule == "" {
		slog.Info("periodic calendar sync disabled")
		return nil
	}

	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(as.Config.GetLocation()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		start := time.Now()
		summary, err := SyncAll(context.Background(), as.BunDB, engine)
		if err != nil {
			slog.Error("CalendarUpdate: can't sync calendars", "error", err)
			return
		}
		slog.Info("CalendarUpdate: calendars synced",
			"synced", summary.Synced,
			"failed", summary.Failed,
			"duration", time.Since(start),
		)
	}); err != nil {
		return err
	}

	c.Start()
	slog.Info("periodic calendar sync scheduled", "schedule", schedule)

	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		<-*gracefulShutdownCh
		<-c.Stop().Done()
		slog.Debug("calendar sync scheduler stopped")
	}()
	return nil
}
