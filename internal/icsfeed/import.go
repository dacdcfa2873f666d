package icsfeed

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/misbah-png/My-Journal/internal/domain"
)

// Parse reads a VCALENDAR stream and returns its timed events as drafts for
// the event store. Entries without a summary or a start time are skipped;
// entries without an end get a one-hour default duration.
func Parse(r io.Reader) ([]domain.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := make([]domain.Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		summary := ve.GetProperty(ical.ComponentPropertySummary)
		if summary == nil || summary.Value == "" {
			continue
		}
		start, err := ve.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			end = start.Add(time.Hour)
		}
		e := domain.Event{
			Title:  summary.Value,
			Start:  start,
			End:    end,
			Repeat: domain.RepeatNone,
		}
		if color := ve.GetProperty(ical.ComponentProperty(ical.PropertyColor)); color != nil {
			e.Color = color.Value
		}
		events = append(events, e)
	}
	return events, nil
}
