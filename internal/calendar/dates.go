package calendar

import (
	"strings"
	"time"
	// Embedded zone data so America/Denver resolves on minimal images.
	_ "time/tzdata"

	"github.com/pkg/errors"
)

// DateLayout is the canonical YYYY-MM-DD wire format
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a string is not a recognisable calendar date
var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"2 January 2006",
}

// ParseDate parses s with the accepted layouts and returns the calendar
// date at midnight UTC. Timestamps keep the date as written, not converted.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", s)
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// LoadLocation resolves a timezone name, falling back to UTC for ""
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown timezone %q", name)
	}
	return loc, nil
}

// Today returns the calendar date of now in loc, at midnight UTC
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window returns the inclusive default listing window [today, today+months]
func Window(today time.Time, months int) (time.Time, time.Time) {
	return today, today.AddDate(0, months, 0)
}
