package reconcile_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"calplanner/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection would get its own in-memory database
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if err := model.Migrate(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestProject(t *testing.T, db *bun.DB) *model.Project {
	t.Helper()
	project := &model.Project{Name: "L3 Informatique"}
	if err := project.Insert(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return project
}

type vevent struct {
	uid     string
	summary string
	start   time.Time
	end     time.Time
}

func feedBody(events ...vevent) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//feed//EN\r\n")
	for _, event := range events {
		sb.WriteString("BEGIN:VEVENT\r\n")
		if event.uid != "" {
			fmt.Fprintf(&sb, "UID:%s\r\n", event.uid)
		}
		sb.WriteString("DTSTAMP:20240901T000000Z\r\n")
		fmt.Fprintf(&sb, "DTSTART:%s\r\n", event.start.UTC().Format("20060102T150405Z"))
		fmt.Fprintf(&sb, "DTEND:%s\r\n", event.end.UTC().Format("20060102T150405Z"))
		fmt.Fprintf(&sb, "SUMMARY:%s\r\n", event.summary)
		sb.WriteString("END:VEVENT\r\n")
	}
	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

// Serves a feed whose body and status can be swapped between syncs.
type feedServer struct {
	*httptest.Server
	mu     sync.Mutex
	body   string
	status int
}

func newFeedServer(t *testing.T, body string) *feedServer {
	t.Helper()
	fs := &feedServer{body: body, status: http.StatusOK}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if fs.status != http.StatusOK {
			http.Error(w, "unavailable", fs.status)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		fmt.Fprint(w, fs.body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) set(body string, status int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.body = body
	fs.status = status
}

func (fs *feedServer) url() string {
	return fs.URL + "/feed.ics"
}

var day = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

func at(days, hours int) time.Time {
	return day.Add(time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour)
}

func moduleNames(modules []model.Module) map[string]model.Module {
	byName := make(map[string]model.Module, len(modules))
	for _, module := range modules {
		byName[module.Name] = module
	}
	return byName
}

func countEvents(t *testing.T, db *bun.DB, calendarID string) int {
	t.Helper()
	count, err := db.NewSelect().
		Model((*model.Event)(nil)).
		Where("calendar_id = ?", calendarID).
		Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return count
}

// Counts the writes a bun.DB runs once it is installed as a query hook.
type writeCounter struct {
	writes atomic.Int64
}

func (c *writeCounter) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (c *writeCounter) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	switch event.Operation() {
	case "INSERT", "UPDATE", "DELETE":
		c.writes.Add(1)
	}
}
