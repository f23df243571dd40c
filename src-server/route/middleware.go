package route

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"calplanner/src-server/model"
	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKeyType string

const (
	ProjectCtxKey  ctxKeyType = "project"
	CalendarCtxKey ctxKeyType = "calendar"
	ModuleCtxKey   ctxKeyType = "module"
)

// Load the project named by {projectID} into the request context.
func ProjectContext(as *utils.AppState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project, err := model.GetProject(r.Context(), as.BunDB, chi.URLParam(r, "projectID"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ProjectCtxKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Load the project owning the public token {token}.
func PublicProjectContext(as *utils.AppState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project, err := model.GetProjectByToken(r.Context(), as.BunDB, chi.URLParam(r, "token"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ProjectCtxKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Load {calendarID}, which must belong to the project in the context.
func CalendarContext(as *utils.AppState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project := projectFrom(r)
			calendar, err := model.GetCalendar(r.Context(), as.BunDB, chi.URLParam(r, "calendarID"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			if project == nil || calendar.ProjectID != project.ID {
				writeNotFound(w, "calendar not found")
				return
			}
			ctx := context.WithValue(r.Context(), CalendarCtxKey, calendar)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Load {moduleID}, which must belong to the calendar in the context.
func ModuleContext(as *utils.AppState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calendar := calendarFrom(r)
			module, err := model.GetModule(r.Context(), as.BunDB, chi.URLParam(r, "moduleID"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			if calendar == nil || module.CalendarID != calendar.ID {
				writeNotFound(w, "module not found")
				return
			}
			ctx := context.WithValue(r.Context(), ModuleCtxKey, module)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func projectFrom(r *http.Request) *model.Project {
	project, _ := r.Context().Value(ProjectCtxKey).(*model.Project)
	return project
}

func calendarFrom(r *http.Request) *model.Calendar {
	calendar, _ := r.Context().Value(CalendarCtxKey).(*model.Calendar)
	return calendar
}

func moduleFrom(r *http.Request) *model.Module {
	module, _ := r.Context().Value(ModuleCtxKey).(*model.Module)
	return module
}

// One slog line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
