// Package icsfeed renders a user's stored events as an iCalendar document so
// external calendar apps can subscribe to them.
package icsfeed

import (
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/misbah-png/My-Journal/internal/domain"
)

const calendarName = "My Journal"

// Build serializes events into a VCALENDAR. Events are emitted in start
// order; the repository's list order is unspecified.
func Build(events []domain.Event, now time.Time) string {
	sorted := append([]domain.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//My Journal//Calendar Feed//EN")
	cal.SetXWRCalName(calendarName)

	for _, e := range sorted {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Title)
		if e.Color != "" {
			ve.SetProperty(ical.ComponentProperty(ical.PropertyColor), e.Color)
		}
	}
	return cal.Serialize()
}
