// Package recurrence turns a repeating template event into the finite series
// of concrete occurrences that get persisted as independent records.
package recurrence

import (
	"time"

	"github.com/misbah-png/My-Journal/internal/domain"
)

// HorizonMonths is the fixed lookahead applied at expansion time. Occurrences
// are never generated at or past the horizon.
const HorizonMonths = 3

// Horizon returns the expansion cutoff for a series created at now.
func Horizon(now time.Time) time.Time {
	return now.AddDate(0, HorizonMonths, 0)
}

// Expand generates the ordered occurrence series for template, starting at the
// template's own start/end and advancing by the repeat step while the
// candidate start is strictly before Horizon(now). Each occurrence is a copy
// of the template (same title, color, repeat) with only start/end moved, so
// the original duration is preserved. Monthly steps use time.AddDate's
// normalization semantics as given.
//
// A template with RepeatNone is returned unchanged as a single-element series.
// Dates are not validated here.
func Expand(template domain.Event, now time.Time) []domain.Event {
	if template.Repeat == domain.RepeatNone || template.Repeat == "" {
		return []domain.Event{template}
	}

	horizon := Horizon(now)
	start := template.Start
	end := template.End

	var out []domain.Event
	for start.Before(horizon) {
		occ := template
		occ.Start = start
		occ.End = end
		out = append(out, occ)

		switch template.Repeat {
		case domain.RepeatDaily:
			start = start.AddDate(0, 0, 1)
			end = end.AddDate(0, 0, 1)
		case domain.RepeatWeekly:
			start = start.AddDate(0, 0, 7)
			end = end.AddDate(0, 0, 7)
		case domain.RepeatMonthly:
			start = start.AddDate(0, 1, 0)
			end = end.AddDate(0, 1, 0)
		default:
			return out
		}
	}
	return out
}
