// Package calendar sits between the calendar-display contract and the event
// repository: it prefills drafts for slot and event selection, validates
// saves, expands repeating templates, and persists the results.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/recurrence"
	"github.com/misbah-png/My-Journal/internal/store"
)

// ValidationError reports a save blocked by a missing or inconsistent field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PartialSaveError reports a repeating-event creation that failed partway
// through. The occurrences in Saved were persisted before the failure; there
// is no rollback.
type PartialSaveError struct {
	Saved []domain.Event
	Err   error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("saved %d of the series before failure: %v", len(e.Saved), e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

// Slot is a selected calendar range.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Service struct {
	repo  store.EventRepository
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

func NewService(repo store.EventRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:  repo,
		log:   logger,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// DraftForSlot prefills a creation form from a selected slot.
func (s *Service) DraftForSlot(slot Slot) domain.EventDraft {
	return domain.EventDraft{
		Start:  slot.Start,
		End:    slot.End,
		Color:  domain.DefaultColor,
		Repeat: domain.RepeatNone,
	}
}

// DraftForEvent prefills an edit form from a stored event, splitting any
// decorative marker out of the title.
func (s *Service) DraftForEvent(e domain.Event) domain.EventDraft {
	emoji, title := SplitTitle(e.Title)
	repeat := e.Repeat
	if repeat == "" {
		repeat = domain.RepeatNone
	}
	return domain.EventDraft{
		Title:  title,
		Emoji:  emoji,
		Start:  e.Start,
		End:    e.End,
		Color:  e.Color,
		Repeat: repeat,
	}
}

// Events returns the user's stored events with the default color filled in
// for display.
func (s *Service) Events(ctx context.Context, userID string) ([]domain.Event, error) {
	events, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i := range events {
		if events[i].Color == "" {
			events[i].Color = domain.DefaultColor
		}
	}
	return events, nil
}

// Create persists a new event. repeat=none stores exactly one record; a
// repeating draft is expanded against the 3-month horizon and each occurrence
// is stored as an independent record with its own id. Persistence is
// sequential with no atomicity: a mid-batch failure returns a
// PartialSaveError listing what was already saved.
func (s *Service) Create(ctx context.Context, userID string, draft domain.EventDraft) ([]domain.Event, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	template := draftEvent(draft)

	if template.Repeat == domain.RepeatNone {
		template.ID = s.newID()
		if err := s.repo.Put(ctx, userID, template); err != nil {
			return nil, fmt.Errorf("save event: %w", err)
		}
		return []domain.Event{template}, nil
	}

	series := recurrence.Expand(template, s.now())
	saved := make([]domain.Event, 0, len(series))
	for _, occ := range series {
		occ.ID = s.newID()
		if err := s.repo.Put(ctx, userID, occ); err != nil {
			s.log.Error("series save failed partway", "saved", len(saved), "total", len(series), "err", err)
			return saved, &PartialSaveError{Saved: saved, Err: err}
		}
		saved = append(saved, occ)
	}
	s.log.Info("series created", "user", userID, "occurrences", len(saved), "repeat", string(template.Repeat))
	return saved, nil
}

// Import stores externally sourced events as regular records with fresh ids.
// Like series creation it persists sequentially with no atomicity.
func (s *Service) Import(ctx context.Context, userID string, events []domain.Event) ([]domain.Event, error) {
	saved := make([]domain.Event, 0, len(events))
	for _, e := range events {
		e.ID = s.newID()
		if e.Color == "" {
			e.Color = domain.DefaultColor
		}
		if e.Repeat == "" {
			e.Repeat = domain.RepeatNone
		}
		if err := s.repo.Put(ctx, userID, e); err != nil {
			s.log.Error("import failed partway", "saved", len(saved), "total", len(events), "err", err)
			return saved, &PartialSaveError{Saved: saved, Err: err}
		}
		saved = append(saved, e)
	}
	s.log.Info("events imported", "user", userID, "count", len(saved))
	return saved, nil
}

// Update overwrites the single record at eventID with the draft's fields.
// Sibling occurrences of a repeating series are never touched; generated
// occurrences carry no link back to their template.
func (s *Service) Update(ctx context.Context, userID, eventID string, draft domain.EventDraft) (domain.Event, error) {
	if eventID == "" {
		return domain.Event{}, ValidationError{Field: "event_id", Reason: "required"}
	}
	if err := validateDraft(draft); err != nil {
		return domain.Event{}, err
	}
	event := draftEvent(draft)
	event.ID = eventID
	if err := s.repo.Put(ctx, userID, event); err != nil {
		return domain.Event{}, fmt.Errorf("save event: %w", err)
	}
	return event, nil
}

// Delete removes exactly one record. Deleting an absent id is a no-op.
func (s *Service) Delete(ctx context.Context, userID, eventID string) error {
	if eventID == "" {
		return ValidationError{Field: "event_id", Reason: "required"}
	}
	if err := s.repo.Delete(ctx, userID, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func validateDraft(draft domain.EventDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return ValidationError{Field: "title", Reason: "required"}
	}
	if draft.Start.IsZero() {
		return ValidationError{Field: "start", Reason: "required"}
	}
	if draft.End.IsZero() {
		return ValidationError{Field: "end", Reason: "required"}
	}
	if !draft.End.After(draft.Start) {
		return ValidationError{Field: "end", Reason: "must be after start"}
	}
	if _, err := domain.ParseRepeat(string(draft.Repeat)); err != nil {
		return ValidationError{Field: "repeat", Reason: err.Error()}
	}
	return nil
}

func draftEvent(draft domain.EventDraft) domain.Event {
	repeat := draft.Repeat
	if repeat == "" {
		repeat = domain.RepeatNone
	}
	color := draft.Color
	if color == "" {
		color = domain.DefaultColor
	}
	return domain.Event{
		Title:  JoinTitle(draft.Emoji, strings.TrimSpace(draft.Title)),
		Start:  draft.Start,
		End:    draft.End,
		Color:  color,
		Repeat: repeat,
	}
}
