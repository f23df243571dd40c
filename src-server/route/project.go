package route

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"calplanner/src-server/apperr"
	"calplanner/src-server/model"
	"calplanner/src-server/projectconf"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/selection"
	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
)

// Largest accepted project config document.
const maxConfigSize = 1 << 20

type projectResp struct {
	ID          string     `json:"projectId"`
	Name        string     `json:"name"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	PublicToken string     `json:"publicToken"`
	PublicUrl   string     `json:"publicUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newProjectResp(as *utils.AppState, project *model.Project) projectResp {
	unixPtr := func(unix int64) *time.Time {
		if unix == 0 {
			return nil
		}
		t := time.Unix(unix, 0).UTC()
		return &t
	}
	resp := projectResp{
		ID:          project.ID,
		Name:        project.Name,
		StartDate:   unixPtr(project.StartDateUnixUTC),
		EndDate:     unixPtr(project.EndDateUnixUTC),
		PublicToken: project.PublicToken,
		CreatedAt:   time.Unix(project.CreatedAt, 0).UTC(),
	}
	if base := as.Config.GetPublicBaseURL(); base != "" {
		resp.PublicUrl = fmt.Sprintf("%s/public/projects/%s/ics", base, project.PublicToken)
	}
	return resp
}

// Projects: /api/projects
func Project(r chi.Router, as *utils.AppState, service *reconcile.CalendarService) {
	r.Post("/import-config", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigSize))
		if err != nil {
			writeError(w, r, apperr.MalformedInput("can't read project config", map[string]any{"err": err}))
			return
		}
		config, err := projectconf.Parse(body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		project, err := projectconf.Import(r.Context(), as.BunDB, service.Engine(), config)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newProjectResp(as, project))
	})

	r.Route("/{projectID}", func(r chi.Router) {
		r.Use(ProjectContext(as))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, newProjectResp(as, projectFrom(r)))
		})

		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			window, err := parseWindow(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			events, err := selection.ListEvents(r.Context(), as.BunDB, projectFrom(r).ID, window)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Get("/ics", func(w http.ResponseWriter, r *http.Request) {
			writeProjectFeed(w, r, as, projectFrom(r))
		})

		r.Post("/ics/token", func(w http.ResponseWriter, r *http.Request) {
			project := projectFrom(r)
			if err := project.RegenerateToken(r.Context(), as.BunDB); err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newProjectResp(as, project))
		})

		r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			config, err := projectconf.Export(r.Context(), as.BunDB, projectFrom(r).ID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			var buf bytes.Buffer
			if err := config.WriteYAML(&buf); err != nil {
				writeError(w, r, err)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="calplanner-project-%s.yaml"`, projectFrom(r).ID))
			w.Write(buf.Bytes())
		})

		r.Route("/calendars", func(r chi.Router) {
			Calendar(r, as, service)
		})
	})
}

// viewStart and viewEnd, both optional RFC 3339 instants.
func parseWindow(r *http.Request) (selection.Window, error) {
	var window selection.Window
	for _, bound := range []struct {
		name   string
		target **time.Time
	}{
		{"viewStart", &window.Start},
		{"viewEnd", &window.End},
	} {
		value := r.URL.Query().Get(bound.name)
		if value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return selection.Window{}, apperr.MalformedInput("invalid "+bound.name, map[string]any{bound.name: value})
		}
		*bound.target = &t
	}
	return window, nil
}

// Render the whole feed before answering, so a failure is still a clean
// error response.
func writeProjectFeed(w http.ResponseWriter, r *http.Request, as *utils.AppState, project *model.Project) {
	var buf bytes.Buffer
	if err := selection.ExportProject(r.Context(), as.BunDB, project.ID, selection.Window{}, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="calplanner-project-%s.ics"`, project.ID))
	w.Write(buf.Bytes())
}
