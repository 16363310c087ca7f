// Package dates provides a day-granularity calendar date.
//
// Providers, the price cache and the portfolio all key state by calendar
// day, never by time of day, so a dedicated comparable value type keeps
// timezone noise out of map keys and cache rows.
package dates

import (
	"encoding/json"
	"fmt"
	"time"
)

// Format is the ISO-8601 representation used for cache rows and output.
const Format = "2006-01-02"

// readFormat tolerates single-digit month and day on input.
const readFormat = "2006-1-2"

// Date is a calendar date. The zero value is "no date".
// Date is comparable and safe to use as a map key.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns the normalized date for the given year, month and day.
// Out-of-range values are carried over, as in time.Date.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Today returns the current date in UTC.
func Today() Date { return New(time.Now().UTC().Date()) }

// Parse reads a date in ISO-8601 form (single-digit month/day accepted).
func Parse(s string) (Date, error) {
	t, err := time.Parse(readFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return New(t.Date()), nil
}

// MustParse is Parse for literals in tests and examples. It panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Time returns the canonical instant of the date: midnight UTC.
func (d Date) Time() time.Time { return d.time() }

func (d Date) String() string { return d.time().Format(Format) }

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d == Date{} }

// Add returns the date i days after d (or before, for negative i).
func (d Date) Add(i int) Date { return New(d.y, d.m, d.d+i) }

// Before reports whether d is strictly before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is strictly after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// IsWeekend reports whether d falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Business returns the weekday dates in [from, to) in increasing order.
func Business(from, to Date) []Date {
	var out []Date
	for cur := from; cur.Before(to); cur = cur.Add(1) {
		if !cur.IsWeekend() {
			out = append(out, cur)
		}
	}
	return out
}

// MarshalJSON encodes the date as an ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO-8601 string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
