package deadlines

import (
	"strings"
	"time"

	"github.com/david/grant-assistant/internal/apperr"
)

// ParseTimestamp accepts RFC 3339, a zone-less date-time (read as UTC), or a
// bare date, which means the end of that day in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	return time.Time{}, apperr.InvalidParameter("unrecognized deadline timestamp %q", s)
}
