// Package clock supplies the reference date ("now") used by every health
// computation. In demo mode the reference date is pinned to a fixed calendar
// day so dashboards and tests see a stable picture.
package clock

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for demo dates and history buckets.
const DateLayout = "2006-01-02"

// Clock returns the reference time.
type Clock interface {
	Now() time.Time
}

// Wall is the real wall clock, in UTC.
type Wall struct{}

// Now returns the current UTC time.
func (Wall) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed struct {
	t time.Time
}

// NewFixed returns a clock pinned to t.
func NewFixed(t time.Time) Fixed { return Fixed{t: t.UTC()} }

// Now returns the pinned instant.
func (f Fixed) Now() time.Time { return f.t }

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// New returns a Fixed clock at demoDate when demoMode is set, else Wall.
func New(demoMode bool, demoDate string) (Clock, error) {
	if !demoMode {
		return Wall{}, nil
	}
	t, err := ParseDate(demoDate)
	if err != nil {
		return nil, err
	}
	return NewFixed(t), nil
}

// StartOfDay truncates t to midnight UTC of its calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last second of t's calendar date (UTC).
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Second)
}
