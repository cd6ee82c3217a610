package domain

import (
	"bytes"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar day without time of day. Comparisons never depend on the clock time,
// so a loan due today is not overdue until tomorrow.
type Date struct {
	d civil.Date
}

// NewDate builds a Date from its parts, normalizing overflow the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date{d: civil.DateOf(t)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{d: d}, nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) AddDays(n int) Date { return Date{d: d.d.AddDays(n)} }

func (d Date) Before(o Date) bool { return d.d.Before(o.d) }
func (d Date) After(o Date) bool  { return d.d.After(o.d) }
func (d Date) Equal(o Date) bool  { return d.d == o.d }
func (d Date) IsZero() bool       { return d.d == civil.Date{} }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return d.d.In(time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.d.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", data)
	}
	var parsed civil.Date
	if err := parsed.UnmarshalText(data[1 : len(data)-1]); err != nil {
		return fmt.Errorf("parse date %s: %w", data, err)
	}
	d.d = parsed
	return nil
}
