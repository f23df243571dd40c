package ical

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ProdID = "-//CalPlanner//Project Export//FR"
	// SUMMARY when an event has neither a title nor a module
	FallbackSummary = "Événement"

	lineBreak   = "\r\n"
	maxLineSize = 75
)

// An event as written to an exported feed.
type ExportEvent struct {
	ID          string
	ModuleName  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Serialize events into an iCalendar document. Events whose start or end
// can't be normalized are skipped; the count of written events is returned.
func WriteFeed(w io.Writer, name string, events []ExportEvent, now time.Time) (int, error) {
	writer := foldingWriter(w)

	header := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProdID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	if name = escapeText(name); name != "" {
		header = append(header, "X-WR-CALNAME:"+name)
	}
	for _, line := range header {
		if err := writer(line); err != nil {
			return 0, err
		}
	}

	stamp := now.UTC().Format(icalDatetimeLayout)
	written := 0
	for _, event := range events {
		lines, err := eventLines(event, stamp)
		if err != nil {
			slog.Warn("skipping event in export", "event", event.ID, "error", err)
			continue
		}
		for _, line := range lines {
			if err := writer(line); err != nil {
				return written, err
			}
		}
		written++
	}

	if err := writer("END:VCALENDAR"); err != nil {
		return written, err
	}
	return written, nil
}

func eventLines(event ExportEvent, stamp string) ([]string, error) {
	start, err := TimeToIcalDatetime(event.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}
	end, err := TimeToIcalDatetime(event.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %w", err)
	}
	if event.End.Before(event.Start) {
		return nil, fmt.Errorf("end %s is before start %s", end, start)
	}

	summary := escapeText(event.Title)
	if summary == "" {
		summary = escapeText(event.ModuleName)
	}
	if summary == "" {
		summary = FallbackSummary
	}

	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + event.ID + "@calplanner",
		"DTSTAMP:" + stamp,
		"DTSTART:" + start,
		"DTEND:" + end,
		"SUMMARY:" + summary,
	}
	if category := escapeText(event.ModuleName); category != "" {
		lines = append(lines, "CATEGORIES:"+category)
	}
	if location := escapeText(event.Location); location != "" {
		lines = append(lines, "LOCATION:"+location)
	}
	if description := escapeText(event.Description); description != "" {
		lines = append(lines, "DESCRIPTION:"+description)
	}
	return append(lines, "END:VEVENT"), nil
}

const icalDatetimeLayout = "20060102T150405Z"

// Convert a time to the compact UTC form YYYYMMDDTHHMMSSZ.
func TimeToIcalDatetime(time_ time.Time) (string, error) {
	if time_.IsZero() {
		return "", fmt.Errorf("time is zero")
	}
	return time_.UTC().Format(icalDatetimeLayout), nil
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
	",", `\,`,
	";", `\;`,
)

// RFC 5545 TEXT escaping of a trimmed value.
func escapeText(s string) string {
	return textEscaper.Replace(strings.TrimSpace(s))
}

// Turn a writer into one that writes whole content lines, folded so that no
// physical line exceeds 75 octets. A fold never splits a UTF-8 sequence.
//
//	writer := foldingWriter(w)
//	writer("DESCRIPTION:a very long text...")
func foldingWriter(w io.Writer) func(string) error {
	return func(line string) error {
		var sb strings.Builder
		limit := maxLineSize
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			sb.WriteString(line[:cut])
			sb.WriteString(lineBreak)
			sb.WriteByte(' ')
			line = line[cut:]
			// the leading space counts toward the next line
			limit = maxLineSize - 1
		}
		sb.WriteString(line)
		sb.WriteString(lineBreak)
		_, err := io.WriteString(w, sb.String())
		return err
	}
}
