package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"calplanner/src-server/apperr"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultColor = "#4c6ef5"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// A subscription to one remote feed.
//
// IsInclusive is the selection mode: modules discovered by a sync start
// visible when true and hidden when false.
type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`

	ID           string `bun:"id,pk"`              // required
	ProjectID    string `bun:"project_id,notnull"` // required
	Url          string `bun:"url,notnull"`        // required
	IsInclusive  bool   `bun:"is_inclusive,notnull"`
	Label        string `bun:"label"`
	Color        string `bun:"color"`
	LastSyncedAt int64  `bun:"last_synced_at"` // 0 = never
	FeedHash     string `bun:"feed_hash"`
	CreatedAt    int64  `bun:"created_at,notnull"`
	ModuleCount  int    `bun:"module_count,scanonly"`

	Modules []*Module `bun:"rel:has-many,join:id=calendar_id"`
}

// Fields that can be changed after creation. Nil means unchanged.
type CalendarPatch struct {
	Label       *string
	IsInclusive *bool
	Color       *string
}

func ValidColor(color string) bool {
	return colorPattern.MatchString(color)
}

// Shortest accepted label; a blank label means none.
const minLabelLength = 2

// A feed URL must be an absolute http(s) URL with a host.
func ValidateFeedURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.MalformedInput("invalid calendar url", map[string]any{"url": raw})
	}
	return nil
}

func ValidateLabel(label string) error {
	if label != "" && utf8.RuneCountInString(strings.TrimSpace(label)) < minLabelLength {
		return apperr.MalformedInput("label is too short", map[string]any{"label": label})
	}
	return nil
}

func (c *Calendar) Insert(ctx context.Context, db bun.IDB) error {
	if db == nil {
		return fmt.Errorf("(*Calendar).Insert: db is nil")
	}
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("(*Calendar).Insert: project id is blank")
	case c.Url == "":
		return apperr.MalformedInput("calendar url is blank", nil)
	case c.Color != "" && !ValidColor(c.Color):
		return apperr.MalformedInput("invalid color", map[string]any{"color": c.Color})
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Color == "" {
		c.Color = DefaultColor
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UTC().Unix()
	}
	if _, err := db.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("(*Calendar).Insert: %w", err)
	}
	return nil
}

func (c *Calendar) LastSynced() time.Time {
	if c.LastSyncedAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.LastSyncedAt, 0).UTC()
}

func GetCalendar(ctx context.Context, db bun.IDB, calendarID string) (*Calendar, error) {
	calendar := new(Calendar)
	if err := db.NewSelect().
		Model(calendar).
		Where("id = ?", calendarID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("calendar not found", map[string]any{"calendar_id": calendarID})
		}
		return nil, fmt.Errorf("GetCalendar: %w", err)
	}
	return calendar, nil
}

// List the calendars of a project, newest first, with their module count.
func ListCalendars(ctx context.Context, db bun.IDB, projectID string) ([]Calendar, error) {
	calendars := make([]Calendar, 0)
	if err := db.NewSelect().
		Model(&calendars).
		ColumnExpr("calendar.*").
		ColumnExpr("(SELECT COUNT(*) FROM modules WHERE modules.calendar_id = calendar.id) AS module_count").
		Where("calendar.project_id = ?", projectID).
		OrderExpr("calendar.created_at DESC, calendar.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListCalendars: %w", err)
	}
	return calendars, nil
}

// Every calendar of every project, used by the scheduler.
func ListAllCalendars(ctx context.Context, db bun.IDB) ([]Calendar, error) {
	calendars := make([]Calendar, 0)
	if err := db.NewSelect().
		Model(&calendars).
		Where("url LIKE ? OR url LIKE ?", "https://%", "http://%").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListAllCalendars: %w", err)
	}
	return calendars, nil
}

func UpdateCalendar(ctx context.Context, db bun.IDB, calendarID string, patch CalendarPatch) (*Calendar, error) {
	query := db.NewUpdate().Model((*Calendar)(nil)).Where("id = ?", calendarID)
	changed := false
	if patch.Label != nil {
		if err := ValidateLabel(*patch.Label); err != nil {
			return nil, err
		}
		query = query.Set("label = ?", *patch.Label)
		changed = true
	}
	if patch.IsInclusive != nil {
		query = query.Set("is_inclusive = ?", *patch.IsInclusive)
		changed = true
	}
	if patch.Color != nil {
		color := *patch.Color
		switch {
		case color == "":
			color = DefaultColor
		case !ValidColor(color):
			return nil, apperr.MalformedInput("invalid color", map[string]any{"color": color})
		}
		query = query.Set("color = ?", color)
		changed = true
	}
	if changed {
		if _, err := query.Exec(ctx); err != nil {
			return nil, fmt.Errorf("UpdateCalendar: %w", err)
		}
	}
	return GetCalendar(ctx, db, calendarID)
}

// Delete a calendar along with its modules and events, in one transaction.
func DeleteCalendar(ctx context.Context, db *bun.DB, calendarID string) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Event)(nil)).
			Where("calendar_id = ?", calendarID).
			Exec(ctx); err != nil {
			return fmt.Errorf("can't delete events: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*Module)(nil)).
			Where("calendar_id = ?", calendarID).
			Exec(ctx); err != nil {
			return fmt.Errorf("can't delete modules: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*Calendar)(nil)).
			Where("id = ?", calendarID).
			Exec(ctx); err != nil {
			return fmt.Errorf("can't delete calendar: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("DeleteCalendar: %w", err)
	}
	return nil
}
