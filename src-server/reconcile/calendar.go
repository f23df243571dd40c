package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"calplanner/src-server/apperr"
	"calplanner/src-server/ical"
	"calplanner/src-server/model"

	"github.com/uptrace/bun"
)

type CreateCalendarParams struct {
	ProjectID string
	Url       string
	// nil means inclusive
	IsInclusive *bool
	Label       string
	Color       string
}

// CalendarService is what the HTTP and CLI layers use to manage calendars.
// Every write that needs a fresh feed goes through the Engine.
type CalendarService struct {
	db     *bun.DB
	engine *Engine
}

func NewCalendarService(db *bun.DB, engine *Engine) *CalendarService {
	return &CalendarService{db: db, engine: engine}
}

func (s *CalendarService) Engine() *Engine {
	return s.engine
}

// Create a calendar and run its first sync. Bad input is rejected before
// anything is written; if the sync fails the calendar is removed again and
// the sync error is returned.
func (s *CalendarService) Create(ctx context.Context, params CreateCalendarParams) (*model.Calendar, Result, error) {
	if err := model.ValidateFeedURL(params.Url); err != nil {
		return nil, Result{}, err
	}
	if err := model.ValidateLabel(params.Label); err != nil {
		return nil, Result{}, err
	}
	if params.Color != "" && !model.ValidColor(params.Color) {
		return nil, Result{}, apperr.MalformedInput("invalid color", map[string]any{"color": params.Color})
	}
	if _, err := model.GetProject(ctx, s.db, params.ProjectID); err != nil {
		return nil, Result{}, err
	}

	inclusive := true
	if params.IsInclusive != nil {
		inclusive = *params.IsInclusive
	}
	calendar := &model.Calendar{
		ProjectID:   params.ProjectID,
		Url:         params.Url,
		IsInclusive: inclusive,
		Label:       params.Label,
		Color:       params.Color,
	}
	if err := calendar.Insert(ctx, s.db); err != nil {
		return nil, Result{}, err
	}

	result, err := s.engine.Sync(ctx, calendar.ID)
	if err != nil {
		// the request context may already be done
		if delErr := model.DeleteCalendar(context.WithoutCancel(ctx), s.db, calendar.ID); delErr != nil {
			slog.Error("can't remove calendar after failed sync",
				"calendar", calendar.ID,
				"url", ical.RedactURL(calendar.Url),
				"error", delErr,
			)
		}
		return nil, Result{}, err
	}

	calendar, err = model.GetCalendar(ctx, s.db, calendar.ID)
	if err != nil {
		return nil, Result{}, fmt.Errorf("(*CalendarService).Create: %w", err)
	}
	return calendar, result, nil
}

func (s *CalendarService) List(ctx context.Context, projectID string) ([]model.Calendar, error) {
	return model.ListCalendars(ctx, s.db, projectID)
}

func (s *CalendarService) Update(ctx context.Context, calendarID string, patch model.CalendarPatch) (*model.Calendar, error) {
	return model.UpdateCalendar(ctx, s.db, calendarID, patch)
}

func (s *CalendarService) Delete(ctx context.Context, calendarID string) error {
	if _, err := model.GetCalendar(ctx, s.db, calendarID); err != nil {
		return err
	}
	return model.DeleteCalendar(ctx, s.db, calendarID)
}

func (s *CalendarService) Sync(ctx context.Context, calendarID string) (Result, error) {
	return s.engine.Sync(ctx, calendarID)
}

func (s *CalendarService) ListModules(ctx context.Context, calendarID string) ([]model.Module, error) {
	return model.ListModules(ctx, s.db, calendarID)
}

func (s *CalendarService) SelectModule(ctx context.Context, moduleID string, selected bool) (*model.Module, error) {
	return model.SetModuleVisibility(ctx, s.db, moduleID, selected)
}

func (s *CalendarService) SelectAllModules(ctx context.Context, calendarID string, selected bool) ([]model.Module, error) {
	if _, err := model.GetCalendar(ctx, s.db, calendarID); err != nil {
		return nil, err
	}
	return model.SetCalendarVisibility(ctx, s.db, calendarID, selected)
}

// Used when a caller refers to a module through its calendar.
func (s *CalendarService) ModuleOfCalendar(ctx context.Context, calendarID, moduleID string) (*model.Module, error) {
	module, err := model.GetModule(ctx, s.db, moduleID)
	if err != nil {
		return nil, err
	}
	if module.CalendarID != calendarID {
		return nil, apperr.NotFound("module not found", map[string]any{"module_id": moduleID})
	}
	return module, nil
}
