package world

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrBadTimeSpan marks a time span that cannot be applied: unparseable
// after translation, zero, or otherwise not a forward step.
var ErrBadTimeSpan = errors.New("invalid time span")

var timeSpanPattern = regexp.MustCompile(`^(\d{1,6})([smhdwMy])$`)

// parseTimeSpan reads a compact <integer><unit> token, where the unit
// is one of s m h d w M y.
func parseTimeSpan(token string) (int, byte, bool) {
	m := timeSpanPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, 0, false
	}
	var amount int
	if _, err := fmt.Sscanf(m[1], "%d", &amount); err != nil {
		return 0, 0, false
	}
	return amount, m[2][0], true
}

// addSpan applies a span with calendar-safe arithmetic. Month and year
// steps go through AddDate so day-of-month overflow normalizes instead
// of corrupting the calendar.
func addSpan(t time.Time, amount int, unit byte) (time.Time, error) {
	if amount <= 0 {
		return time.Time{}, fmt.Errorf("%w: non-positive amount %d", ErrBadTimeSpan, amount)
	}
	switch unit {
	case 's':
		return t.Add(time.Duration(amount) * time.Second), nil
	case 'm':
		return t.Add(time.Duration(amount) * time.Minute), nil
	case 'h':
		return t.Add(time.Duration(amount) * time.Hour), nil
	case 'd':
		return t.AddDate(0, 0, amount), nil
	case 'w':
		return t.AddDate(0, 0, 7*amount), nil
	case 'M':
		return t.AddDate(0, amount, 0), nil
	case 'y':
		return t.AddDate(amount, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown unit %q", ErrBadTimeSpan, string(unit))
	}
}
