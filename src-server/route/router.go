package route

import (
	"net/http"

	"calplanner/src-server/reconcile"
	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(as *utils.AppState, service *reconcile.CalendarService) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := as.BunDB.PingContext(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/projects", func(r chi.Router) {
		Project(r, as, service)
	})
	r.Route("/public", func(r chi.Router) {
		Ical(r, as)
	})

	return r
}
