package model

import (
	"time"

	"github.com/uptrace/bun"
)

// One timed occurrence. Events are owned by the reconciliation: they are
// replaced wholesale on every sync of their calendar and never edited.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string `bun:"id,pk"`               // required
	CalendarID  string `bun:"calendar_id,notnull"` // required
	ModuleID    string `bun:"module_id,notnull"`   // required
	ExternalID  string `bun:"external_id"`
	Title       string `bun:"title,notnull"`
	Description string `bun:"description"`
	Location    string `bun:"location"`

	StartDateUnixUTC int64 `bun:"start_date,notnull"` // required
	EndDateUnixUTC   int64 `bun:"end_date,notnull"`   // required

	Module *Module `bun:"rel:belongs-to,join:module_id=id"`
}

func (e *Event) Start() time.Time {
	return time.Unix(e.StartDateUnixUTC, 0).UTC()
}

func (e *Event) End() time.Time {
	return time.Unix(e.EndDateUnixUTC, 0).UTC()
}
