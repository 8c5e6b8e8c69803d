package domain

import (
	"strings"
	"time"
)

var eventDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// LongDateLayout renders weekday, month, day and year in en-US order.
const LongDateLayout = "Monday, January 2, 2006"

// FormatEventDate renders a stored event date in long form. Unparseable
// values are returned unchanged.
func FormatEventDate(raw string) string {
	value := strings.TrimSpace(raw)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(LongDateLayout)
		}
	}
	return raw
}
