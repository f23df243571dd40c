package ical_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"calplanner/src-server/apperr"
	"calplanner/src-server/ical"
)

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//ADE//Export//FR\r\n" +
	"X-WR-CALNAME:L3 Informatique\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ade-1\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTSTART:20240902T080000Z\r\n" +
	"DTEND:20240902T100000Z\r\n" +
	"SUMMARY:Algorithmique - TD groupe 3\r\n" +
	"LOCATION:Salle B12\\, bâtiment 2\r\n" +
	"DESCRIPTION:Apporter le sujet\\nTD 4\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ade-6\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTSTART:20240902T130000Z\r\n" +
	"DTEND:20240902T150000Z\r\n" +
	"SUMMARY:Systèmes - TP C:\\\\new\\\\temp\r\n" +
	"DESCRIPTION:dossier C:\\\\notes\\nligne 2\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ade-2\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTSTART:20240903T080000Z\r\n" +
	"SUMMARY:Sans fin\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ade-3\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTEND:20240903T100000Z\r\n" +
	"SUMMARY:Sans début\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTSTART:20240904T130000Z\r\n" +
	"DTEND:20240904T150000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ade-5\r\n" +
	"DTSTAMP:20240901T000000Z\r\n" +
	"DTSTART:20240905T080000Z\r\n" +
	"DTEND:20240905T100000Z\r\n" +
	"SUMMARY:algorithmique - CM\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseFeed(t *testing.T) {
	feed, err := ical.ParseFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatal(err)
	}

	if feed.GetName() != "L3 Informatique" {
		t.Errorf("name = %q, want %q", feed.GetName(), "L3 Informatique")
	}

	entries := slices.Collect(feed.Entries())
	if len(entries) != 4 {
		t.Fatalf("len(entries) = %d, want 4", len(entries))
	}
	for _, entry := range entries {
		if entry.Start.IsZero() || entry.End.IsZero() {
			t.Errorf("entry %q has no start or end", entry.ExternalID)
		}
		if strings.HasPrefix(entry.Title, "Sans") {
			t.Errorf("entry %q should have been dropped", entry.Title)
		}
	}

	first := entries[0]
	if first.ModuleName != "Algorithmique" {
		t.Errorf("ModuleName = %q, want Algorithmique", first.ModuleName)
	}
	if first.Title != "Algorithmique - TD groupe 3" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Location != "Salle B12, bâtiment 2" {
		t.Errorf("Location = %q", first.Location)
	}
	if first.Description != "Apporter le sujet\nTD 4" {
		t.Errorf("Description = %q", first.Description)
	}
	if first.ExternalID != "ade-1" {
		t.Errorf("ExternalID = %q, want ade-1", first.ExternalID)
	}
	if want := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC); !first.Start.Equal(want) {
		t.Errorf("Start = %s, want %s", first.Start, want)
	}

	// escaped backslashes come out as single literal backslashes
	paths := entries[1]
	if paths.Title != `Systèmes - TP C:\new\temp` {
		t.Errorf("Title = %q", paths.Title)
	}
	if paths.Description != "dossier C:\\notes\nligne 2" {
		t.Errorf("Description = %q", paths.Description)
	}
	if paths.ModuleName != "Systèmes" {
		t.Errorf("ModuleName = %q, want Systèmes", paths.ModuleName)
	}

	// no summary, no uid
	untitled := entries[2]
	if untitled.ModuleName != "Module" || untitled.Title != "Module" {
		t.Errorf("untitled entry = %q/%q, want Module/Module", untitled.ModuleName, untitled.Title)
	}
	if untitled.ExternalID != "Module-2024-09-04T13:00:00.000Z" {
		t.Errorf("synthesized ExternalID = %q", untitled.ExternalID)
	}

	names := slices.Collect(feed.ModuleNames())
	if !slices.Equal(names, []string{"Algorithmique", "Systèmes", "Module", "algorithmique"}) {
		t.Errorf("ModuleNames = %v", names)
	}
}

func TestParseFeed_NotACalendar(t *testing.T) {
	_, err := ical.ParseFeed([]byte("<html><body>Service unavailable</body></html>"))
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestParseFeed_Empty(t *testing.T) {
	feed, err := ical.ParseFeed([]byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:x\r\nEND:VCALENDAR\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if feed.Len() != 0 {
		t.Errorf("Len() = %d, want 0", feed.Len())
	}
}

func TestModuleNamesStopEarly(t *testing.T) {
	feed, err := ical.ParseFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for range feed.ModuleNames() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
