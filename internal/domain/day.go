package domain

import (
	"time"

	"github.com/pkg/errors"
)

const dayLayout = "2006-01-02"

// Day is a calendar day. Rate tables are keyed by Day; the zero value is
// usable as "no day" and compares before any real day.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf truncates t to its calendar day in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// ParseDay parses a day in YYYY-MM-DD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, errors.Wrapf(err, "parse day %q", s)
	}
	return DayOf(t), nil
}

func (d Day) String() string {
	return d.Time().Format(dayLayout)
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, time.UTC)
}

func (d Day) After(other Day) bool {
	return d.Time().After(other.Time())
}

func (d Day) Before(other Day) bool {
	return d.Time().Before(other.Time())
}

func (d Day) IsZero() bool {
	return d == Day{}
}

// AddDays returns the day n days later (or earlier for negative n).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(data []byte) error {
	parsed, err := ParseDay(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
