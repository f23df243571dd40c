package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"calplanner/src-server/apperr"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
)

// A named grouping of events within one calendar, derived from the feed.
// Only IsVisible is ever changed by a user.
type Module struct {
	bun.BaseModel `bun:"table:modules"`

	ID         string `bun:"id,pk"`               // required
	CalendarID string `bun:"calendar_id,notnull"` // required
	Name       string `bun:"name,notnull"`        // required
	IsVisible  bool   `bun:"is_visible,notnull"`
	CreatedAt  int64  `bun:"created_at,notnull"`

	Calendar *Calendar `bun:"rel:belongs-to,join:calendar_id=id"`
}

// The identity of a module name within its calendar: trimmed and case-folded,
// so "Réseaux", " RÉSEAUX " and "réseaux" are the same module.
func ModuleKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func (m *Module) Key() string {
	return ModuleKey(m.Name)
}

func (m *Module) Insert(ctx context.Context, db bun.IDB) error {
	switch {
	case m.CalendarID == "":
		return fmt.Errorf("(*Module).Insert: calendar id is blank")
	case strings.TrimSpace(m.Name) == "":
		return fmt.Errorf("(*Module).Insert: name is blank")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UTC().Unix()
	}
	if _, err := db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("(*Module).Insert: %w", err)
	}
	return nil
}

func ListModules(ctx context.Context, db bun.IDB, calendarID string) ([]Module, error) {
	modules := make([]Module, 0)
	if err := db.NewSelect().
		Model(&modules).
		Where("calendar_id = ?", calendarID).
		OrderExpr("name ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListModules: %w", err)
	}
	return modules, nil
}

func GetModule(ctx context.Context, db bun.IDB, moduleID string) (*Module, error) {
	module := new(Module)
	if err := db.NewSelect().
		Model(module).
		Where("id = ?", moduleID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("module not found", map[string]any{"module_id": moduleID})
		}
		return nil, fmt.Errorf("GetModule: %w", err)
	}
	return module, nil
}

// Toggle one module; the flag survives later syncs as long as the module
// name stays in the feed.
func SetModuleVisibility(ctx context.Context, db bun.IDB, moduleID string, visible bool) (*Module, error) {
	res, err := db.NewUpdate().
		Model((*Module)(nil)).
		Set("is_visible = ?", visible).
		Where("id = ?", moduleID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("SetModuleVisibility: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.NotFound("module not found", map[string]any{"module_id": moduleID})
	}
	return GetModule(ctx, db, moduleID)
}

// Toggle every module of a calendar at once.
func SetCalendarVisibility(ctx context.Context, db bun.IDB, calendarID string, visible bool) ([]Module, error) {
	if _, err := db.NewUpdate().
		Model((*Module)(nil)).
		Set("is_visible = ?", visible).
		Where("calendar_id = ?", calendarID).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("SetCalendarVisibility: %w", err)
	}
	return ListModules(ctx, db, calendarID)
}
