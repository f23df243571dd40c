package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

func NewWhenParser() *when.Parser {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return parser
}

// Read a point in time typed by a person: RFC 3339, a plain date, or a
// phrase such as "next monday" or "in 2 weeks", relative to now.
func ParseMoment(parser *when.Parser, text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("ParseMoment: text is blank")
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return t, nil
	}

	result, err := parser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseMoment: %w", err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("ParseMoment: can't understand %q", text)
	}
	return result.Time, nil
}
