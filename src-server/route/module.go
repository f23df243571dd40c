package route

import (
	"net/http"

	"calplanner/src-server/apperr"
	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
)

type moduleResp struct {
	ID         string `json:"moduleId"`
	CalendarID string `json:"calendarId"`
	Name       string `json:"name"`
	IsSelected bool   `json:"isSelected"`
}

func newModuleResps(modules []model.Module) []moduleResp {
	resp := make([]moduleResp, 0, len(modules))
	for _, module := range modules {
		resp = append(resp, moduleResp{
			ID:         module.ID,
			CalendarID: module.CalendarID,
			Name:       module.Name,
			IsSelected: module.IsVisible,
		})
	}
	return resp
}

// Modules of a calendar: .../calendars/{calendarID}/modules
func Module(r chi.Router, as *utils.AppState, service *reconcile.CalendarService) {
	type SelectionReqBody struct {
		IsSelected *bool `json:"isSelected"`
	}

	readSelection := func(w http.ResponseWriter, r *http.Request) (bool, error) {
		var reqBody SelectionReqBody
		if err := readJSON(w, r, &reqBody); err != nil {
			return false, err
		}
		if reqBody.IsSelected == nil {
			return false, apperr.MalformedInput("isSelected is required", nil)
		}
		return *reqBody.IsSelected, nil
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		modules, err := service.ListModules(r.Context(), calendarFrom(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newModuleResps(modules))
	})

	r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
		selected, err := readSelection(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		modules, err := service.SelectAllModules(r.Context(), calendarFrom(r).ID, selected)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newModuleResps(modules))
	})

	r.With(ModuleContext(as)).Patch("/{moduleID}", func(w http.ResponseWriter, r *http.Request) {
		selected, err := readSelection(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		module, err := service.SelectModule(r.Context(), moduleFrom(r).ID, selected)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newModuleResps([]model.Module{*module})[0])
	})
}
