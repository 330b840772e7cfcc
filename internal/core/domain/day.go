package domain

import (
	"strings"
	"time"
)

// DayLayout is the canonical textual form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date normalized to UTC midnight. Two timestamps on the
// same UTC calendar date map to equal Days, so Day is usable as a map key.
type Day struct {
	t time.Time
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC day.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses a yyyy-MM-dd string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Time returns the UTC midnight of the day.
func (d Day) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.t.IsZero() }

// AddDays returns the day n days after d (before if n is negative).
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly before o.
func (d Day) Before(o Day) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Day) After(o Day) bool { return d.t.After(o.t) }

// Compare returns -1, 0 or +1.
func (d Day) Compare(o Day) int { return d.t.Compare(o.t) }

func (d Day) String() string { return d.t.Format(DayLayout) }

// CompareDays orders days ascending. It is the index order of day buckets.
func CompareDays(a, b Day) int { return a.Compare(b) }

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Day) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
