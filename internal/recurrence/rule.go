// Package recurrence expands a parent session date into the dates of its
// recurring instances. It has no storage dependency.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for session dates.
const DateLayout = "2006-01-02"

// MaxInstances caps a single expansion. Hitting it ends generation early
// without an error.
const MaxInstances = 365

// Type selects which days of the range produce an instance.
type Type string

const (
	TypeNone   Type = "none"
	TypeDaily  Type = "daily"
	TypeWeekly Type = "weekly"
	TypeCustom Type = "custom"
)

var (
	ErrUnknownType      = errors.New("recurrence type must be daily, weekly or custom")
	ErrNoDays           = errors.New("custom recurrence needs at least one weekday")
	ErrInvalidWeekday   = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrEndNotAfterStart = errors.New("recurrence end date must be after the session date")
	ErrSpanTooLong      = errors.New("recurrence cannot extend more than two years")
)

// Rule is a recurrence declaration. Days is only read for TypeCustom.
type Rule struct {
	Type    Type
	Days    []time.Weekday
	EndDate time.Time
}

// ParseType accepts the stored and wire names of a recurrence type.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeNone, TypeDaily, TypeWeekly, TypeCustom:
		return t, true
	}
	return "", false
}

// ParseDate parses a 'YYYY-MM-DD' date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Weekdays converts 0..6 indices into weekdays, rejecting anything else.
func Weekdays(indices []int) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i > 6 {
			return nil, ErrInvalidWeekday
		}
		days = append(days, time.Weekday(i))
	}
	return days, nil
}

// Indices is the inverse of Weekdays.
func Indices(days []time.Weekday) []int {
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

// Validate checks r against the parent's date. Nothing should be written
// for a rule that fails here.
func (r Rule) Validate(parent time.Time) error {
	switch r.Type {
	case TypeDaily, TypeWeekly:
	case TypeCustom:
		if len(r.Days) == 0 {
			return ErrNoDays
		}
		for _, d := range r.Days {
			if d < time.Sunday || d > time.Saturday {
				return ErrInvalidWeekday
			}
		}
	default:
		return ErrUnknownType
	}

	parent, end := dateOnly(parent), dateOnly(r.EndDate)
	if !end.After(parent) {
		return ErrEndNotAfterStart
	}
	if end.After(parent.AddDate(2, 0, 0)) {
		return ErrSpanTooLong
	}
	return nil
}

// Expand returns the instance dates from the day after parent up to and
// including the end date. truncated is set when MaxInstances stopped the
// walk before the end date.
func (r Rule) Expand(parent time.Time) (dates []time.Time, truncated bool, err error) {
	if err := r.Validate(parent); err != nil {
		return nil, false, err
	}

	parent, end := dateOnly(parent), dateOnly(r.EndDate)
	for day := parent.AddDate(0, 0, 1); !day.After(end); day = day.AddDate(0, 0, 1) {
		if !r.matches(parent, day) {
			continue
		}
		if len(dates) == MaxInstances {
			return dates, true, nil
		}
		dates = append(dates, day)
	}
	return dates, false, nil
}

func (r Rule) matches(parent, day time.Time) bool {
	switch r.Type {
	case TypeDaily:
		return true
	case TypeWeekly:
		return day.Weekday() == parent.Weekday()
	case TypeCustom:
		for _, d := range r.Days {
			if day.Weekday() == d {
				return true
			}
		}
	}
	return false
}

// dateOnly drops the clock part and pins the date to UTC so day arithmetic
// is not affected by DST.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
