package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"calplanner/src-server/apperr"
	"calplanner/src-server/ical"
	"calplanner/src-server/metric"
	"calplanner/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Rows per INSERT statement, well under SQLite's bound parameter limit.
const insertBatchSize = 500

type Input struct {
	CalendarID string
	// new modules start visible when true
	Inclusive bool
	Feed      *ical.Feed
	FeedHash  string
}

type Result struct {
	CalendarID     string `json:"calendarId"`
	ModulesCreated int    `json:"modulesCreated"`
	ModulesRemoved int    `json:"modulesRemoved"`
	EventsCreated  int    `json:"eventsCreated"`
}

// Engine brings the stored modules and events of a calendar in line with
// its remote feed.
type Engine struct {
	db     *bun.DB
	client *http.Client
	now    func() time.Time
}

func NewEngine(db *bun.DB, client *http.Client) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{
		db:     db,
		client: client,
		now:    time.Now,
	}
}

// Fetch, decode and reconcile one calendar.
func (e *Engine) Sync(ctx context.Context, calendarID string) (Result, error) {
	start := time.Now()
	result, err := e.sync(ctx, calendarID)
	duration := time.Since(start)

	switch {
	case err == nil:
		metric.ObserveSync(metric.SyncOK, duration)
		metric.AddSyncedEvents(result.EventsCreated, result.ModulesCreated, result.ModulesRemoved)
		slog.Info("calendar synced",
			"calendar", calendarID,
			"modules_created", result.ModulesCreated,
			"modules_removed", result.ModulesRemoved,
			"events", result.EventsCreated,
			"duration", duration,
		)
	case errors.Is(err, apperr.ErrNotFound):
		// nothing was attempted
	case errors.Is(err, apperr.ErrFeedUnavailable):
		metric.ObserveSync(metric.SyncUnavailable, duration)
		slog.Warn("calendar feed unavailable", "calendar", calendarID, "error", err)
	case errors.Is(err, apperr.ErrMalformedInput):
		metric.ObserveSync(metric.SyncMalformed, duration)
		slog.Warn("calendar feed malformed", "calendar", calendarID, "error", err)
	default:
		metric.ObserveSync(metric.SyncFailed, duration)
		slog.Error("calendar sync failed", "calendar", calendarID, "error", err)
	}
	return result, err
}

func (e *Engine) sync(ctx context.Context, calendarID string) (Result, error) {
	calendar, err := model.GetCalendar(ctx, e.db, calendarID)
	if err != nil {
		return Result{}, err
	}

	fetched, err := ical.FetchFeed(ctx, e.client, calendar.Url)
	if err != nil {
		return Result{}, err
	}

	if calendar.FeedHash == fetched.Hash {
		slog.Debug("feed unchanged since last sync", "calendar", calendarID)
	}

	feed, err := ical.ParseFeed(fetched.Body)
	if err != nil {
		return Result{}, err
	}

	return e.Reconcile(ctx, Input{
		CalendarID: calendar.ID,
		Inclusive:  calendar.IsInclusive,
		Feed:       feed,
		FeedHash:   fetched.Hash,
	})
}

// Apply a decoded feed to the store in a single transaction. Modules are
// matched by key, so their ids and visibility survive re-syncs; events are
// replaced wholesale. Nothing is written if any step fails.
func (e *Engine) Reconcile(ctx context.Context, input Input) (Result, error) {
	if input.Feed == nil {
		return Result{}, fmt.Errorf("(*Engine).Reconcile: feed is nil")
	}
	result := Result{CalendarID: input.CalendarID}
	now := e.now().UTC().Unix()

	// first-seen casing wins
	names := make([]string, 0)
	keys := make(map[string]struct{})
	for name := range input.Feed.ModuleNames() {
		key := model.ModuleKey(name)
		if _, ok := keys[key]; ok {
			continue
		}
		keys[key] = struct{}{}
		names = append(names, name)
	}

	if err := e.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		stored := make([]model.Module, 0)
		if err := tx.NewSelect().
			Model(&stored).
			Where("calendar_id = ?", input.CalendarID).
			Scan(ctx); err != nil {
			return fmt.Errorf("can't load modules: %w", err)
		}
		storedByKey := make(map[string]model.Module, len(stored))
		for _, module := range stored {
			storedByKey[module.Key()] = module
		}

		moduleIDs := make(map[string]string, len(names))
		created := make([]model.Module, 0)
		for _, name := range names {
			key := model.ModuleKey(name)
			if module, ok := storedByKey[key]; ok {
				moduleIDs[key] = module.ID
				continue
			}
			module := model.Module{
				ID:         uuid.NewString(),
				CalendarID: input.CalendarID,
				Name:       name,
				IsVisible:  input.Inclusive,
				CreatedAt:  now,
			}
			moduleIDs[key] = module.ID
			created = append(created, module)
		}
		if len(created) > 0 {
			if _, err := tx.NewInsert().Model(&created).Exec(ctx); err != nil {
				return fmt.Errorf("can't insert modules: %w", err)
			}
		}
		result.ModulesCreated = len(created)

		removed := make([]string, 0)
		for _, module := range stored {
			if _, ok := keys[module.Key()]; !ok {
				removed = append(removed, module.ID)
			}
		}
		if len(removed) > 0 {
			if _, err := tx.NewDelete().
				Model((*model.Event)(nil)).
				Where("module_id IN (?)", bun.In(removed)).
				Exec(ctx); err != nil {
				return fmt.Errorf("can't delete events of removed modules: %w", err)
			}
			if _, err := tx.NewDelete().
				Model((*model.Module)(nil)).
				Where("id IN (?)", bun.In(removed)).
				Exec(ctx); err != nil {
				return fmt.Errorf("can't delete removed modules: %w", err)
			}
		}
		result.ModulesRemoved = len(removed)

		if _, err := tx.NewDelete().
			Model((*model.Event)(nil)).
			Where("calendar_id = ?", input.CalendarID).
			Exec(ctx); err != nil {
			return fmt.Errorf("can't delete old events: %w", err)
		}

		events := make([]model.Event, 0, input.Feed.Len())
		unresolved := 0
		for entry := range input.Feed.Entries() {
			moduleID, ok := moduleIDs[model.ModuleKey(entry.ModuleName)]
			if !ok {
				unresolved++
				continue
			}
			events = append(events, model.Event{
				ID:               uuid.NewString(),
				CalendarID:       input.CalendarID,
				ModuleID:         moduleID,
				ExternalID:       entry.ExternalID,
				Title:            entry.Title,
				Description:      entry.Description,
				Location:         entry.Location,
				StartDateUnixUTC: entry.Start.Unix(),
				EndDateUnixUTC:   entry.End.Unix(),
			})
		}
		if unresolved > 0 {
			slog.Debug("skipped entries without a module", "calendar", input.CalendarID, "count", unresolved)
		}
		for batch := range slices.Chunk(events, insertBatchSize) {
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("can't insert events: %w", err)
			}
		}
		result.EventsCreated = len(events)

		res, err := tx.NewUpdate().
			Model((*model.Calendar)(nil)).
			Set("last_synced_at = ?", now).
			Set("feed_hash = ?", input.FeedHash).
			Where("id = ?", input.CalendarID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("can't update calendar: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("calendar not found", map[string]any{"calendar_id": input.CalendarID})
		}
		return nil
	}); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("(*Engine).Reconcile: %w", err)
	}

	return result, nil
}
