package route

import (
	"net/http"
	"time"

	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
)

type calendarResp struct {
	ID           string     `json:"calendarId"`
	ProjectID    string     `json:"projectId"`
	Url          string     `json:"url"`
	IsInclusive  bool       `json:"type"`
	Label        string     `json:"label"`
	Color        string     `json:"color"`
	LastSyncedAt *time.Time `json:"lastSynced"`
	ModuleCount  int        `json:"moduleCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newCalendarResp(calendar *model.Calendar) calendarResp {
	resp := calendarResp{
		ID:          calendar.ID,
		ProjectID:   calendar.ProjectID,
		Url:         calendar.Url,
		IsInclusive: calendar.IsInclusive,
		Label:       calendar.Label,
		Color:       calendar.Color,
		ModuleCount: calendar.ModuleCount,
		CreatedAt:   time.Unix(calendar.CreatedAt, 0).UTC(),
	}
	if resp.Color == "" {
		resp.Color = model.DefaultColor
	}
	if synced := calendar.LastSynced(); !synced.IsZero() {
		resp.LastSyncedAt = &synced
	}
	return resp
}

// Calendars of a project: /api/projects/{projectID}/calendars
func Calendar(r chi.Router, as *utils.AppState, service *reconcile.CalendarService) {
	type CreateReqBody struct {
		Url   string `json:"url"`
		Type  *bool  `json:"type"`
		Label string `json:"label"`
		Color string `json:"color"`
	}

	type UpdateReqBody struct {
		Label *string `json:"label"`
		Type  *bool   `json:"type"`
		Color *string `json:"color"`
	}

	type CreateRespBody struct {
		calendarResp
		Sync reconcile.Result `json:"sync"`
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		calendars, err := service.List(r.Context(), projectFrom(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp := make([]calendarResp, 0, len(calendars))
		for i := range calendars {
			resp = append(resp, newCalendarResp(&calendars[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var reqBody CreateReqBody
		if err := readJSON(w, r, &reqBody); err != nil {
			writeError(w, r, err)
			return
		}
		calendar, result, err := service.Create(r.Context(), reconcile.CreateCalendarParams{
			ProjectID:   projectFrom(r).ID,
			Url:         reqBody.Url,
			IsInclusive: reqBody.Type,
			Label:       reqBody.Label,
			Color:       reqBody.Color,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, CreateRespBody{
			calendarResp: newCalendarResp(calendar),
			Sync:         result,
		})
	})

	r.Route("/{calendarID}", func(r chi.Router) {
		r.Use(CalendarContext(as))

		r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
			var reqBody UpdateReqBody
			if err := readJSON(w, r, &reqBody); err != nil {
				writeError(w, r, err)
				return
			}
			calendar, err := service.Update(r.Context(), calendarFrom(r).ID, model.CalendarPatch{
				Label:       reqBody.Label,
				IsInclusive: reqBody.Type,
				Color:       reqBody.Color,
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newCalendarResp(calendar))
		})

		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			if err := service.Delete(r.Context(), calendarFrom(r).ID); err != nil {
				writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
			result, err := service.Sync(r.Context(), calendarFrom(r).ID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Route("/modules", func(r chi.Router) {
			Module(r, as, service)
		})
	})
}
