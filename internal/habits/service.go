// Package habits stores each user's habit list as one whole document, the way
// the original tracker rewrote its entire localStorage array on every change.
package habits

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/store"
)

const collectionName = "habits"

type Service struct {
	docs store.CollectionStore
}

func NewService(docs store.CollectionStore) *Service {
	return &Service{docs: docs}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Habit, error) {
	doc, err := s.docs.LoadCollection(ctx, userID, collectionName)
	if err != nil {
		return nil, fmt.Errorf("load habits: %w", err)
	}
	if len(doc) == 0 {
		return []domain.Habit{}, nil
	}
	var habits []domain.Habit
	if err := json.Unmarshal(doc, &habits); err != nil {
		return nil, fmt.Errorf("decode habits: %w", err)
	}
	return habits, nil
}

// Replace overwrites the user's entire habit list.
func (s *Service) Replace(ctx context.Context, userID string, habits []domain.Habit) error {
	if habits == nil {
		habits = []domain.Habit{}
	}
	doc, err := json.Marshal(habits)
	if err != nil {
		return fmt.Errorf("encode habits: %w", err)
	}
	if err := s.docs.SaveCollection(ctx, userID, collectionName, doc); err != nil {
		return fmt.Errorf("save habits: %w", err)
	}
	return nil
}

// Stats reports how many habits are marked done on the given "2006-01-02" day.
type Stats struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

func (s *Service) StatsForDay(ctx context.Context, userID, day string) (Stats, error) {
	habits, err := s.List(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Date: day, Total: len(habits)}
	for _, h := range habits {
		if h.Days[day] {
			stats.Completed++
		}
	}
	return stats, nil
}
