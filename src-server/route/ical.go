package route

import (
	"net/http"

	"calplanner/src-server/utils"

	"github.com/go-chi/chi/v5"
)

// The unauthenticated export: /public/projects/{token}/ics. Regenerating the
// token invalidates previously shared links.
func Ical(r chi.Router, as *utils.AppState) {
	r.With(PublicProjectContext(as)).Get("/projects/{token}/ics", func(w http.ResponseWriter, r *http.Request) {
		writeProjectFeed(w, r, as, projectFrom(r))
	})
}
