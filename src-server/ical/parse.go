package ical

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calplanner/src-server/apperr"

	ics "github.com/arran4/golang-ical"
)

// Decode a feed body. VEVENTs without a usable DTSTART or DTEND are dropped;
// partial feeds are normal and never an error.
func ParseFeed(body []byte) (*Feed, error) {
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return nil, apperr.MalformedInput("not an iCalendar document", nil)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.MalformedInput("can't parse iCalendar document", map[string]any{
			"err": err,
		})
	}

	var name string
	for _, prop := range cal.CalendarProperties {
		if strings.EqualFold(prop.IANAToken, "X-WR-CALNAME") {
			name = prop.Value
		}
	}

	entries := make([]Entry, 0)
	dropped := 0
	for _, vevent := range cal.Events() {
		entry, ok := toEntry(vevent)
		if !ok {
			dropped++
			continue
		}
		entries = append(entries, entry)
	}
	if dropped > 0 {
		slog.Debug("dropped entries without start or end", "count", dropped)
	}

	return NewFeed(name, entries), nil
}

func toEntry(vevent *ics.VEvent) (Entry, bool) {
	if vevent.GetProperty(ics.ComponentPropertyDtStart) == nil ||
		vevent.GetProperty(ics.ComponentPropertyDtEnd) == nil {
		return Entry{}, false
	}
	start, err := vevent.GetStartAt()
	if err != nil || start.IsZero() {
		return Entry{}, false
	}
	end, err := vevent.GetEndAt()
	if err != nil || end.IsZero() {
		return Entry{}, false
	}

	summary := textProperty(vevent, ics.ComponentPropertySummary)
	// extracted once per entry: the reconciliation resolves modules by this
	// exact name
	moduleName := ExtractModuleName(summary)

	entry := Entry{
		ModuleName:  moduleName,
		Title:       summary,
		Description: textProperty(vevent, ics.ComponentPropertyDescription),
		Location:    textProperty(vevent, ics.ComponentPropertyLocation),
		Start:       start.UTC(),
		End:         end.UTC(),
		ExternalID:  strings.TrimSpace(textProperty(vevent, ics.ComponentPropertyUniqueId)),
	}
	if strings.TrimSpace(entry.Title) == "" {
		entry.Title = moduleName
	}
	if entry.ExternalID == "" {
		entry.ExternalID = SyntheticExternalID(moduleName, entry.Start)
	}
	return entry, true
}

// Stand-in for a missing UID, stable for a given module and start.
func SyntheticExternalID(moduleName string, start time.Time) string {
	return fmt.Sprintf("%s-%s", moduleName, start.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// golang-ical has already undone the TEXT escaping.
func textProperty(vevent *ics.VEvent, property ics.ComponentProperty) string {
	prop := vevent.GetProperty(property)
	if prop == nil {
		return ""
	}
	return prop.Value
}
