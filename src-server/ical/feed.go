package ical

import (
	"iter"
	"time"
)

// One VEVENT of a remote feed, normalized to UTC.
type Entry struct {
	ModuleName  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	ExternalID  string
}

// A decoded feed. Only entries with both a start and an end survive decoding.
type Feed struct {
	name    string
	entries []Entry
}

func NewFeed(name string, entries []Entry) *Feed {
	return &Feed{name: name, entries: entries}
}

// X-WR-CALNAME of the feed, if any
func (f *Feed) GetName() string {
	return f.name
}

func (f *Feed) Len() int {
	return len(f.entries)
}

// The module name of every entry, in feed order, duplicates included.
func (f *Feed) ModuleNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, entry := range f.entries {
			if !yield(entry.ModuleName) {
				return
			}
		}
	}
}

func (f *Feed) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, entry := range f.entries {
			if !yield(entry) {
				return
			}
		}
	}
}
