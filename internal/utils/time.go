// internal/utils/time.go
package utils

import (
	"fmt"
	"strings"
	"time"
)

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExpiry accepts an ISO-8601 timestamp or a bare date. Values without a
// zone are read as UTC; a bare date means midnight UTC of that day.
func ParseExpiry(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expiry %q: expected YYYY-MM-DD or RFC 3339", value)
}

// FormatDate renders the date portion of t in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
