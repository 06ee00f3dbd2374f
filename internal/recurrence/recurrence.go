// Package recurrence expands a schedule's recurrence rule into dated occurrence slots.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var (
	ErrInvalidRule        = errors.New("invalid recurrence rule")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidTimeOfDay   = errors.New("invalid time of day")
	ErrInvalidWindow      = errors.New("window end is before window start")
	ErrTooManyOccurrences = errors.New("too many occurrences in window")
)

// Pattern is the part of a schedule that determines when it happens.
type Pattern struct {
	StartDate time.Time  // anchor date; only the calendar date is used
	EndDate   *time.Time // last date (inclusive) the schedule may occur on
	StartTime string     // HH:MM
	EndTime   string     // HH:MM; at or before StartTime means the next day
	Timezone  string
	Rule      string // RRULE body, optionally prefixed with "RRULE:"; empty means a single occurrence
}

// Window is an inclusive range of calendar dates.
type Window struct {
	From time.Time
	To   time.Time
}

// DefaultWindow returns today .. today+horizonDays in loc.
func DefaultWindow(now time.Time, horizonDays int, loc *time.Location) Window {
	today := DateOf(now.In(loc))
	return Window{From: today, To: today.AddDate(0, 0, horizonDays)}
}

// Instance is one concrete slot.
type Instance struct {
	Date    time.Time // calendar date in the schedule's zone, as midnight UTC
	StartAt time.Time
	EndAt   time.Time
}

// DateOf returns the calendar date of t as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTimeOfDay parses HH:MM into hour and minute.
func ParseTimeOfDay(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return t.Hour(), t.Minute(), nil
}

// normalizeRule strips an optional RRULE: prefix and surrounding space.
func normalizeRule(rule string) string {
	rule = strings.TrimSpace(rule)
	if len(rule) >= 6 && strings.EqualFold(rule[:6], "RRULE:") {
		rule = rule[6:]
	}
	return rule
}

// ValidateRule reports whether rule parses. An empty rule is valid.
func ValidateRule(rule string) error {
	rule = normalizeRule(rule)
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// Expand computes the instances of p whose start date falls inside w, clipped by p.EndDate.
// It fails without returning partial results when more than max instances would be produced.
func Expand(p Pattern, w Window, max int) ([]Instance, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || p.Timezone == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, p.Timezone)
	}
	sh, sm, err := ParseTimeOfDay(p.StartTime)
	if err != nil {
		return nil, err
	}
	eh, em, err := ParseTimeOfDay(p.EndTime)
	if err != nil {
		return nil, err
	}

	from, to := DateOf(w.From), DateOf(w.To)
	if to.Before(from) {
		return nil, ErrInvalidWindow
	}
	if p.EndDate != nil && DateOf(*p.EndDate).Before(to) {
		to = DateOf(*p.EndDate)
		if to.Before(from) {
			return nil, nil
		}
	}
	// Window bounds as wall-clock instants in the schedule zone; the end is the last instant of the last day.
	windowStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	windowEnd := time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)

	sd := p.StartDate
	dtstart := time.Date(sd.Year(), sd.Month(), sd.Day(), sh, sm, 0, 0, loc)

	var starts []time.Time
	rule := normalizeRule(p.Rule)
	if rule == "" {
		if !dtstart.Before(windowStart) && !dtstart.After(windowEnd) {
			starts = append(starts, dtstart)
		}
	} else {
		opt, err := rrule.StrToROptionInLocation(rule, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		opt.Dtstart = dtstart
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		next := r.Iterator()
		for t, ok := next(); ok; t, ok = next() {
			if t.After(windowEnd) {
				break
			}
			if t.Before(windowStart) {
				continue
			}
			starts = append(starts, t)
			if len(starts) > max {
				return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, max)
			}
		}
	}
	if len(starts) > max {
		return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, max)
	}

	out := make([]Instance, 0, len(starts))
	for _, s := range starts {
		s = s.In(loc)
		dayOffset := 0
		if eh*60+em <= sh*60+sm {
			dayOffset = 1
		}
		end := time.Date(s.Year(), s.Month(), s.Day()+dayOffset, eh, em, 0, 0, loc)
		out = append(out, Instance{Date: DateOf(s), StartAt: s, EndAt: end})
	}
	return out, nil
}
