package domain

import (
	"fmt"
	"time"
)

// DefaultColor is applied to events that were saved without a display color.
const DefaultColor = "#8a2be2"

type Repeat string

const (
	RepeatNone    Repeat = "none"
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
)

// ParseRepeat maps a form value to a Repeat. The empty string means none.
func ParseRepeat(v string) (Repeat, error) {
	switch Repeat(v) {
	case "", RepeatNone:
		return RepeatNone, nil
	case RepeatDaily, RepeatWeekly, RepeatMonthly:
		return Repeat(v), nil
	default:
		return RepeatNone, fmt.Errorf("invalid repeat value: %q", v)
	}
}

// Event is one stored calendar record. Occurrences generated from a repeating
// template are persisted as independent Events with no link back to the
// template; the Repeat value is carried over verbatim but never re-expanded.
type Event struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Color  string    `json:"color,omitempty"`
	Repeat Repeat    `json:"repeat,omitempty"`
}

// Duration returns the event's span. It is preserved across generated
// occurrences.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// EventDraft is the typed editing form for an event. Title, Start and End are
// required; Emoji, Color and Repeat are optional. The decorative emoji is kept
// apart from the title while editing and re-applied on save.
type EventDraft struct {
	Title  string    `json:"title"`
	Emoji  string    `json:"emoji,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Color  string    `json:"color,omitempty"`
	Repeat Repeat    `json:"repeat,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Habit tracks per-day completion, keyed by "2006-01-02" date strings.
type Habit struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Days map[string]bool `json:"days,omitempty"`
}

type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	DueDate   string    `json:"due_date,omitempty"`
	Reminder  string    `json:"reminder,omitempty"`
	TopTask   bool      `json:"top_task,omitempty"`
	Subtasks  []Subtask `json:"subtasks,omitempty"`
}
