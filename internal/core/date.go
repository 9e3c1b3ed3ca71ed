package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Date is a calendar day, always stored at 00:00 UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day, keeping the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day.
func Today(now func() time.Time) Date {
	if now == nil {
		now = time.Now
	}
	return DateOf(now())
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps are accepted and
// truncated to their calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, NewValidationError("date", "is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", "cannot be zero")
	}
	return nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) Equal(o Date) bool      { return d.Time.Equal(o.Time) }
func (d Date) Before(o Date) bool     { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool      { return d.Time.After(o.Time) }
func (d Date) OnOrBefore(o Date) bool { return !d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
