package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calplanner/src-server/metric"
	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/route"
	"calplanner/src-server/scheduler"
	"calplanner/src-server/utils"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the periodic sync",
	Long: `Start the HTTP API, expose Prometheus metrics on /metrics and re-sync
every calendar on SYNC_SCHEDULE.

Environment variables (also read from .env):
  PORT                        - HTTP port (default: 8080)
  DATABASE_PATH               - SQLite database file (default: ./sqlite.db)
  FEED_TIMEOUT                - timeout of one feed download (default: 30s)
  SYNC_SCHEDULE               - cron spec of the periodic sync (default: @every 1h, empty disables)
  METRIC_COLLECTION_INTERVAL  - database latency probe interval (default: 15s)
  PUBLIC_BASE_URL             - base of the public export links
  TIMEZONE                    - location of the sync schedule (default: local)
  LOG_LEVEL                   - debug, info, warn or error (default: info)
  BUNDEBUG                    - 1 logs failed queries, 2 logs every query`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		as := utils.NewAppState()

		if err := model.Migrate(cmd.Context(), as.BunDB); err != nil {
			return err
		}

		engine := reconcile.NewEngine(as.BunDB, as.HTTPClient)
		service := reconcile.NewCalendarService(as.BunDB, engine)

		metric.Init(as)
		if err := scheduler.CalendarUpdate(as, engine); err != nil {
			return err
		}

		server := &http.Server{
			Addr:              ":" + as.Config.GetPort(),
			Handler:           route.NewRouter(as, service),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("cannot start HTTP server", "error", err)
				as.AppCloseSignalChan <- syscall.SIGTERM
			}
		}()

		slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

		signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
		<-as.AppCloseSignalChan
		slog.Info("Gracefully shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("can't shut down HTTP server cleanly", "error", err)
		}
		as.GracefulShutdown()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		as := utils.NewAppState()
		defer as.GracefulShutdown()

		if err := model.Migrate(cmd.Context(), as.BunDB); err != nil {
			return err
		}
		slog.Info("database is up to date", "path", as.Config.GetDatabasePath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
