package ical

import "strings"

// Label used when a summary is blank.
const FallbackModuleName = "Module"

// Checked in this order; the first one present in the summary wins, wherever
// it occurs.
var moduleSeparators = []string{" - ", "-", ":", "|"}

// Derive the module label of an entry from its summary, e.g.
// "Algorithmique - TD groupe 3" is in the "Algorithmique" module.
func ExtractModuleName(summary string) string {
	cleaned := strings.Join(strings.Fields(summary), " ")
	if cleaned == "" {
		return FallbackModuleName
	}
	for _, separator := range moduleSeparators {
		if before, _, found := strings.Cut(cleaned, separator); found {
			return strings.TrimSpace(before)
		}
	}
	return cleaned
}
