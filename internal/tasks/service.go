// Package tasks stores the to-do list as one whole document per user,
// replaced in full on every change.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/store"
)

const collectionName = "tasks"

type Service struct {
	docs store.CollectionStore
}

func NewService(docs store.CollectionStore) *Service {
	return &Service{docs: docs}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Task, error) {
	doc, err := s.docs.LoadCollection(ctx, userID, collectionName)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if len(doc) == 0 {
		return []domain.Task{}, nil
	}
	var tasks []domain.Task
	if err := json.Unmarshal(doc, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// Replace overwrites the user's entire task list. Tasks without an id or with
// empty text are rejected rather than silently stored.
func (s *Service) Replace(ctx context.Context, userID string, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	for i, task := range tasks {
		if task.ID == "" {
			return fmt.Errorf("task %d: id is required", i)
		}
		if task.Text == "" {
			return fmt.Errorf("task %q: text is required", task.ID)
		}
	}
	doc, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := s.docs.SaveCollection(ctx, userID, collectionName, doc); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}
