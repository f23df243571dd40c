package model

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/uptrace/bun"
)

// Bring the database schema up to date. Safe to run on every startup: tables
// and indexes are created only when missing, and columns added after the
// first release are patched into older databases.
func Migrate(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*Project)(nil),
			(*Calendar)(nil),
			(*Module)(nil),
			(*Event)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		for _, index := range []struct {
			model  interface{}
			name   string
			column string
		}{
			{(*Calendar)(nil), "calendars_project_id_idx", "project_id"},
			{(*Module)(nil), "modules_calendar_id_idx", "calendar_id"},
			{(*Event)(nil), "events_calendar_id_idx", "calendar_id"},
			{(*Event)(nil), "events_module_id_idx", "module_id"},
		} {
			if _, err := tx.
				NewCreateIndex().
				Model(index.model).
				Index(index.name).
				Column(index.column).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		return ensureCalendarColor(ctx, tx)
	}); err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}

	return nil
}

// Calendars created before colors existed have no color column.
func ensureCalendarColor(ctx context.Context, db bun.IDB) error {
	columns := make([]string, 0)
	if err := db.NewRaw("SELECT name FROM pragma_table_info(?)", "calendars").
		Scan(ctx, &columns); err != nil {
		return fmt.Errorf("can't read calendars columns: %w", err)
	}

	if !slices.Contains(columns, "color") {
		slog.Info("adding color column to calendars")
		if _, err := db.NewAddColumn().
			Model((*Calendar)(nil)).
			ColumnExpr("color VARCHAR").
			Exec(ctx); err != nil {
			return fmt.Errorf("can't add color column: %w", err)
		}
	}

	if _, err := db.NewUpdate().
		Model((*Calendar)(nil)).
		Set("color = ?", DefaultColor).
		Where("color IS NULL OR color = ''").
		Exec(ctx); err != nil {
		return fmt.Errorf("can't backfill calendar colors: %w", err)
	}

	return nil
}
