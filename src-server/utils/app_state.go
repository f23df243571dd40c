package utils

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/olebedev/when"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config     *Config
	RawDB      *sql.DB
	BunDB      *bun.DB
	HTTPClient *http.Client
	When       *when.Parser

	// receives SIGINT/SIGTERM, or a fatal error from the HTTP server
	AppCloseSignalChan chan os.Signal

	mu                     sync.Mutex
	gracefulShutdownChans  []*chan struct{}
	gracefulShutdownCalled bool
}

func NewAppState() *AppState {
	as := &AppState{
		AppCloseSignalChan: make(chan os.Signal, 1),
	}

	// env
	as.Config = NewConfig()

	// date parser
	as.When = NewWhenParser()

	// feed client
	as.HTTPClient = &http.Client{Timeout: as.Config.GetFeedTimeout()}

	// database
	var err error
	as.RawDB, err = sql.Open(sqliteshim.ShimName, as.Config.GetDatabasePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	// one writer at a time, or concurrent syncs fail with SQLITE_BUSY
	as.RawDB.SetMaxOpenConns(1)

	as.BunDB = bun.NewDB(as.RawDB, sqlitedialect.New())
	as.BunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))

	return as
}

// Get a channel that is closed when the app shuts down.
func (as *AppState) CreateGracefulShutdownChan() *chan struct{} {
	as.mu.Lock()
	defer as.mu.Unlock()
	ch := make(chan struct{})
	if as.gracefulShutdownCalled {
		close(ch)
		return &ch
	}
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, &ch)
	return &ch
}

// Notify every background goroutine, then close the database.
func (as *AppState) GracefulShutdown() {
	as.mu.Lock()
	if as.gracefulShutdownCalled {
		as.mu.Unlock()
		return
	}
	as.gracefulShutdownCalled = true
	for _, ch := range as.gracefulShutdownChans {
		close(*ch)
	}
	as.gracefulShutdownChans = nil
	as.mu.Unlock()

	if err := as.BunDB.Close(); err != nil {
		slog.Warn("can't close database", "error", err)
	}
}
