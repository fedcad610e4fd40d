// Package civiltime pins every timestamp the service reads or writes to one
// configured civil time zone.
package civiltime

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	TimestampLayout = "2006-01-02 15:04:05"
)

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Clock yields the current instant in the civil zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock for loc. A nil now defaults to time.Now.
func New(loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return Clock{loc: loc, now: now}
}

// Load resolves an IANA zone name and returns a Clock on the wall clock.
func Load(name string) (Clock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Clock{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc, nil), nil
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

// ParseDate parses YYYY-MM-DD as midnight in the civil zone.
func (c Clock) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), c.Location())
}

// ParseTimeOfDay validates an HH:MM value.
func ParseTimeOfDay(value string) (time.Time, error) {
	return time.Parse(TimeLayout, strings.TrimSpace(value))
}

// Combine joins a date and an HH:MM time of day in the civil zone.
func (c Clock) Combine(date, timeOfDay string) (time.Time, error) {
	d, err := c.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), 0, 0, c.Location()), nil
}

// ParseTimestamp accepts RFC 3339 or a wall clock timestamp, the latter read
// in the civil zone.
func (c Clock) ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(c.Location()), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, c.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// DayRange returns [start 00:00, end+1 day 00:00) for inclusive calendar dates.
func (c Clock) DayRange(startDate, endDate string) (time.Time, time.Time, error) {
	from, err := c.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := c.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}

// Format renders t as YYYY-MM-DD HH:MM:SS in the civil zone.
func (c Clock) Format(t time.Time) string {
	return t.In(c.Location()).Format(TimestampLayout)
}

// FormatPtr renders nil as the empty string.
func (c Clock) FormatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return c.Format(*t)
}
