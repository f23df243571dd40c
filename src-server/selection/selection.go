package selection

import (
	"context"
	"fmt"
	"io"
	"time"

	"calplanner/src-server/ical"
	"calplanner/src-server/metric"
	"calplanner/src-server/model"

	"github.com/uptrace/bun"
)

// Bounds of a view. A nil bound leaves that side open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// An event as shown to a project's viewer.
type Event struct {
	ID          string    `json:"eventId"`
	CalendarID  string    `json:"calendarId"`
	ModuleID    string    `json:"moduleId"`
	ModuleName  string    `json:"moduleName"`
	Color       string    `json:"color"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type row struct {
	bun.BaseModel `bun:"table:events,alias:event"`

	ID               string `bun:"id"`
	CalendarID       string `bun:"calendar_id"`
	ModuleID         string `bun:"module_id"`
	Title            string `bun:"title"`
	Description      string `bun:"description"`
	Location         string `bun:"location"`
	StartDateUnixUTC int64  `bun:"start_date"`
	EndDateUnixUTC   int64  `bun:"end_date"`
	ModuleName       string `bun:"module_name"`
	Color            string `bun:"color"`
}

// List the events of a project whose module is visible and that overlap the
// window, by start then id. An event touching a bound is kept.
func ListEvents(ctx context.Context, db bun.IDB, projectID string, window Window) ([]Event, error) {
	rows := make([]row, 0)
	query := db.NewSelect().
		Model(&rows).
		ColumnExpr("event.id, event.calendar_id, event.module_id").
		ColumnExpr("event.title, event.description, event.location").
		ColumnExpr("event.start_date, event.end_date").
		ColumnExpr("module.name AS module_name").
		ColumnExpr("calendar.color AS color").
		Join("JOIN modules AS module ON module.id = event.module_id").
		Join("JOIN calendars AS calendar ON calendar.id = module.calendar_id").
		Where("calendar.project_id = ?", projectID).
		Where("module.is_visible = ?", true)
	if window.Start != nil {
		// stored instants are whole seconds: round a fractional start up
		start := window.Start.Unix()
		if window.Start.Nanosecond() > 0 {
			start++
		}
		query = query.Where("event.end_date >= ?", start)
	}
	if window.End != nil {
		query = query.Where("event.start_date <= ?", window.End.Unix())
	}
	if err := query.
		OrderExpr("event.start_date ASC, event.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("selection.ListEvents: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		color := r.Color
		if color == "" {
			color = model.DefaultColor
		}
		events = append(events, Event{
			ID:          r.ID,
			CalendarID:  r.CalendarID,
			ModuleID:    r.ModuleID,
			ModuleName:  r.ModuleName,
			Color:       color,
			Title:       r.Title,
			Description: r.Description,
			Location:    r.Location,
			Start:       time.Unix(r.StartDateUnixUTC, 0).UTC(),
			End:         time.Unix(r.EndDateUnixUTC, 0).UTC(),
		})
	}
	return events, nil
}

// Write the visible events of a project as an iCalendar feed named after the
// project.
func ExportProject(ctx context.Context, db bun.IDB, projectID string, window Window, w io.Writer) error {
	project, err := model.GetProject(ctx, db, projectID)
	if err != nil {
		return err
	}
	events, err := ListEvents(ctx, db, projectID, window)
	if err != nil {
		return err
	}

	exported := make([]ical.ExportEvent, 0, len(events))
	for _, event := range events {
		exported = append(exported, ical.ExportEvent{
			ID:          event.ID,
			ModuleName:  event.ModuleName,
			Title:       event.Title,
			Description: event.Description,
			Location:    event.Location,
			Start:       event.Start,
			End:         event.End,
		})
	}

	written, err := ical.WriteFeed(w, project.Name, exported, time.Now())
	metric.AddExportedEvents(written, len(exported)-written)
	if err != nil {
		return fmt.Errorf("selection.ExportProject: %w", err)
	}
	return nil
}
