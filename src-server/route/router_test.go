package route_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/route"
	"calplanner/src-server/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const feed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//feed//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:1\r\nDTSTAMP:20240901T000000Z\r\nDTSTART:20240902T080000Z\r\nDTEND:20240902T100000Z\r\nSUMMARY:Algorithmique - CM\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:2\r\nDTSTAMP:20240901T000000Z\r\nDTSTART:20240903T080000Z\r\nDTEND:20240903T100000Z\r\nSUMMARY:Anglais\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type testApp struct {
	api   *httptest.Server
	feeds *httptest.Server
	db    *bun.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	if err := model.Migrate(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.ics" {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, feed)
	}))
	t.Cleanup(feeds.Close)

	as := &utils.AppState{Config: utils.NewConfig(), BunDB: db}
	service := reconcile.NewCalendarService(db, reconcile.NewEngine(db, feeds.Client()))
	api := httptest.NewServer(route.NewRouter(as, service))
	t.Cleanup(api.Close)

	return &testApp{api: api, feeds: feeds, db: db}
}

func (app *testApp) do(t *testing.T, method, path, body string) (int, []byte, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, app.api.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := app.api.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data, resp.Header
}

func (app *testApp) importProject(t *testing.T) map[string]any {
	t.Helper()
	status, body, _ := app.do(t, http.MethodPost, "/api/projects/import-config", fmt.Sprintf(
		"project:\n  name: Semestre 5\ncalendars:\n  - url: %s/l3.ics\n    label: L3\n", app.feeds.URL))
	if status != http.StatusCreated {
		t.Fatalf("import: status = %d, body = %s", status, body)
	}
	project := make(map[string]any)
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatal(err)
	}
	return project
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("can't decode %s: %v", data, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	if status, body, _ := app.do(t, http.MethodGet, "/health", ""); status != http.StatusOK {
		t.Errorf("status = %d, body = %s", status, body)
	}
}

func TestProjectFlow(t *testing.T) {
	app := newTestApp(t)
	project := app.importProject(t)
	projectID := project["projectId"].(string)
	base := "/api/projects/" + projectID

	status, body, _ := app.do(t, http.MethodGet, base+"/calendars", "")
	if status != http.StatusOK {
		t.Fatalf("calendars: status = %d", status)
	}
	calendars := decode[[]map[string]any](t, body)
	if len(calendars) != 1 || calendars[0]["moduleCount"].(float64) != 2 || calendars[0]["label"] != "L3" {
		t.Fatalf("calendars = %s", body)
	}
	calendarID := calendars[0]["calendarId"].(string)

	status, body, _ = app.do(t, http.MethodGet, base+"/events", "")
	if status != http.StatusOK {
		t.Fatalf("events: status = %d", status)
	}
	if events := decode[[]map[string]any](t, body); len(events) != 2 {
		t.Fatalf("events = %s", body)
	}

	status, body, _ = app.do(t, http.MethodGet, base+"/calendars/"+calendarID+"/modules", "")
	if status != http.StatusOK {
		t.Fatalf("modules: status = %d", status)
	}
	modules := decode[[]map[string]any](t, body)
	var anglais string
	for _, module := range modules {
		if module["name"] == "Anglais" {
			anglais = module["moduleId"].(string)
		}
	}
	if anglais == "" {
		t.Fatalf("modules = %s", body)
	}

	status, body, _ = app.do(t, http.MethodPatch, base+"/calendars/"+calendarID+"/modules/"+anglais, `{"isSelected": false}`)
	if status != http.StatusOK || decode[map[string]any](t, body)["isSelected"] != false {
		t.Fatalf("select: status = %d, body = %s", status, body)
	}

	status, body, _ = app.do(t, http.MethodGet, base+"/events?viewStart=2024-09-01T00:00:00Z&viewEnd=2024-09-30T00:00:00Z", "")
	if status != http.StatusOK {
		t.Fatalf("events: status = %d", status)
	}
	events := decode[[]map[string]any](t, body)
	if len(events) != 1 || events[0]["moduleName"] != "Algorithmique" {
		t.Errorf("events after hiding a module = %s", body)
	}

	status, body, header := app.do(t, http.MethodGet, base+"/ics", "")
	if status != http.StatusOK || !strings.HasPrefix(header.Get("Content-Type"), "text/calendar") {
		t.Fatalf("ics: status = %d, content type = %s", status, header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "SUMMARY:Algorithmique - CM") || strings.Contains(string(body), "Anglais") {
		t.Errorf("ics = %s", body)
	}

	status, body, _ = app.do(t, http.MethodPost, base+"/calendars/"+calendarID+"/sync", "")
	if status != http.StatusOK || decode[map[string]any](t, body)["eventsCreated"].(float64) != 2 {
		t.Errorf("sync: status = %d, body = %s", status, body)
	}

	status, body, _ = app.do(t, http.MethodGet, base+"/config", "")
	if status != http.StatusOK || !strings.Contains(string(body), app.feeds.URL+"/l3.ics") {
		t.Errorf("config: status = %d, body = %s", status, body)
	}

	status, body, _ = app.do(t, http.MethodPatch, base+"/calendars/"+calendarID, `{"color": "#00ff00", "label": "Licence"}`)
	if status != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", status, body)
	}
	if updated := decode[map[string]any](t, body); updated["color"] != "#00ff00" || updated["label"] != "Licence" {
		t.Errorf("update = %s", body)
	}

	if status, _, _ := app.do(t, http.MethodDelete, base+"/calendars/"+calendarID, ""); status != http.StatusNoContent {
		t.Errorf("delete: status = %d", status)
	}
	if status, _, _ := app.do(t, http.MethodDelete, base+"/calendars/"+calendarID, ""); status != http.StatusNotFound {
		t.Errorf("second delete: status = %d", status)
	}
}

func TestCreateCalendar(t *testing.T) {
	app := newTestApp(t)
	projectID := app.importProject(t)["projectId"].(string)
	base := "/api/projects/" + projectID + "/calendars"

	status, body, _ := app.do(t, http.MethodPost, base, fmt.Sprintf(`{"url": %q, "type": false, "color": "#123456"}`, app.feeds.URL+"/m1.ics"))
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	created := decode[map[string]any](t, body)
	if created["type"] != false || created["color"] != "#123456" || created["lastSynced"] == nil {
		t.Errorf("created = %s", body)
	}

	for _, tc := range []struct {
		name string
		body string
		want int
	}{
		{"feed unavailable", fmt.Sprintf(`{"url": %q}`, app.feeds.URL+"/broken.ics"), http.StatusBadRequest},
		{"invalid url", `{"url": "not a url"}`, http.StatusBadRequest},
		{"invalid color", fmt.Sprintf(`{"url": %q, "color": "blue"}`, app.feeds.URL+"/m2.ics"), http.StatusBadRequest},
		{"invalid json", `{"url": `, http.StatusBadRequest},
		{"unknown field", `{"link": "x"}`, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if status, body, _ := app.do(t, http.MethodPost, base, tc.body); status != tc.want {
				t.Errorf("status = %d, want %d, body = %s", status, tc.want, body)
			}
		})
	}

	status, body, _ = app.do(t, http.MethodGet, base, "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if calendars := decode[[]map[string]any](t, body); len(calendars) != 2 {
		t.Errorf("failed creations left calendars behind: %s", body)
	}
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)
	projectID := app.importProject(t)["projectId"].(string)
	other := app.importProject(t)["projectId"].(string)

	status, body, _ := app.do(t, http.MethodGet, "/api/projects/"+other+"/calendars", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	otherCalendar := decode[[]map[string]any](t, body)[0]["calendarId"].(string)

	for _, path := range []string{
		"/api/projects/missing/events",
		"/api/projects/missing/ics",
		"/api/projects/missing/calendars",
		"/api/projects/" + projectID + "/calendars/missing/modules",
		// a calendar of another project
		"/api/projects/" + projectID + "/calendars/" + otherCalendar + "/modules",
		"/public/projects/missing/ics",
	} {
		if status, body, _ := app.do(t, http.MethodGet, path, ""); status != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, body = %s", path, status, body)
		}
	}

	path := "/api/projects/" + other + "/calendars/" + otherCalendar + "/modules/missing"
	if status, _, _ := app.do(t, http.MethodPatch, path, `{"isSelected": true}`); status != http.StatusNotFound {
		t.Errorf("PATCH %s: status = %d", path, status)
	}
}

func TestBadRequest(t *testing.T) {
	app := newTestApp(t)
	projectID := app.importProject(t)["projectId"].(string)
	base := "/api/projects/" + projectID

	status, body, _ := app.do(t, http.MethodGet, base+"/calendars", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	calendarID := decode[[]map[string]any](t, body)[0]["calendarId"].(string)

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, base + "/events?viewStart=yesterday", ""},
		{http.MethodGet, base + "/events?viewEnd=2024-13-01", ""},
		{http.MethodPatch, base + "/calendars/" + calendarID + "/modules", `{}`},
		{http.MethodPatch, base + "/calendars/" + calendarID + "/modules", `{"isSelected": "yes"}`},
		{http.MethodPost, "/api/projects/import-config", "project:\n  name: ''\n"},
		{http.MethodPost, "/api/projects/import-config", "{{{"},
	} {
		if status, body, _ := app.do(t, tc.method, tc.path, tc.body); status != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, body = %s", tc.method, tc.path, status, body)
		}
	}
}

func TestPublicExportToken(t *testing.T) {
	app := newTestApp(t)
	project := app.importProject(t)
	projectID := project["projectId"].(string)
	oldToken := project["publicToken"].(string)

	status, body, _ := app.do(t, http.MethodGet, "/public/projects/"+oldToken+"/ics", "")
	if status != http.StatusOK || !strings.Contains(string(body), "BEGIN:VCALENDAR") {
		t.Fatalf("public export: status = %d", status)
	}

	status, body, _ = app.do(t, http.MethodPost, "/api/projects/"+projectID+"/ics/token", "")
	if status != http.StatusOK {
		t.Fatalf("regenerate: status = %d", status)
	}
	newToken := decode[map[string]any](t, body)["publicToken"].(string)
	if newToken == oldToken {
		t.Fatal("token was not regenerated")
	}

	if status, _, _ := app.do(t, http.MethodGet, "/public/projects/"+oldToken+"/ics", ""); status != http.StatusNotFound {
		t.Errorf("old token: status = %d, want 404", status)
	}
	if status, _, _ := app.do(t, http.MethodGet, "/public/projects/"+newToken+"/ics", ""); status != http.StatusOK {
		t.Errorf("new token: status = %d, want 200", status)
	}
}
