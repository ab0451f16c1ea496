package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
)

type TaskStore struct {
	db docstore.Store
}

func NewTaskStore(db docstore.Store) *TaskStore {
	return &TaskStore{db: db}
}

func decodeTask(snap *docstore.Snapshot) (*model.Task, error) {
	var t model.Task
	if err := snap.DataTo(&t); err != nil {
		return nil, err
	}
	t.ID = snap.ID()
	if t.Reactions == nil {
		t.Reactions = map[string]int{}
	}
	return &t, nil
}

// Create adds a pending task for dateKey on behalf of a user.
func (s *TaskStore) Create(ctx context.Context, householdID, userID, userName, title, dateKey string) (*model.Task, error) {
	fields := docstore.Fields{
		"title":       strings.TrimSpace(title),
		"userId":      userID,
		"householdId": householdID,
		"createdAt":   docstore.ServerTimestamp,
		"status":      string(model.TaskPending),
		"dateKey":     dateKey,
		"thanksCount": 0,
		"reactions":   map[string]any{},
	}
	if userName != "" {
		fields["userName"] = userName
	}
	id, err := s.db.Add(ctx, tasksCol, fields)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

// CreateGenerated adds a pending task owned by the system user.
func (s *TaskStore) CreateGenerated(ctx context.Context, householdID, title, dateKey string) (string, error) {
	id, err := s.db.Add(ctx, tasksCol, docstore.Fields{
		"title":       title,
		"householdId": householdID,
		"userId":      model.SystemUserID,
		"status":      string(model.TaskPending),
		"dateKey":     dateKey,
		"createdAt":   docstore.ServerTimestamp,
		"reactions":   map[string]any{},
	})
	if err != nil {
		return "", fmt.Errorf("insert generated task: %w", err)
	}
	return id, nil
}

// ExistsForDay reports whether any task with exactly this title exists for
// the household on dateKey.
func (s *TaskStore) ExistsForDay(ctx context.Context, householdID, dateKey, title string) (bool, error) {
	snaps, err := s.db.Query(ctx, docstore.Collection(tasksCol).
		Where("householdId", docstore.Equal, householdID).
		Where("dateKey", docstore.Equal, dateKey).
		Where("title", docstore.Equal, title).
		Limit(1))
	if err != nil {
		return false, fmt.Errorf("check existing task: %w", err)
	}
	return len(snaps) > 0, nil
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	snap, err := s.db.Get(ctx, TaskPath(id))
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	t, err := decodeTask(snap)
	if err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

// ListForDay returns the household's tasks for dateKey, newest first. When
// the composite index is unavailable it falls back to an unordered query and
// sorts in memory.
func (s *TaskStore) ListForDay(ctx context.Context, householdID, dateKey string) ([]model.Task, error) {
	q := docstore.Collection(tasksCol).
		Where("householdId", docstore.Equal, householdID).
		Where("dateKey", docstore.Equal, dateKey)

	snaps, err := s.db.Query(ctx, q.OrderBy("createdAt", docstore.Desc))
	fallback := errors.Is(err, docstore.ErrFailedPrecondition)
	if fallback {
		snaps, err = s.db.Query(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(snaps))
	for _, snap := range snaps {
		t, err := decodeTask(snap)
		if err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	if fallback {
		sort.SliceStable(tasks, func(i, j int) bool {
			return createdMillis(tasks[i]) > createdMillis(tasks[j])
		})
	}
	return tasks, nil
}

func createdMillis(t model.Task) int64 {
	if t.CreatedAt == nil {
		return 0
	}
	return t.CreatedAt.UnixMilli()
}

func (s *TaskStore) UpdateTitle(ctx context.Context, id, title string) (*model.Task, error) {
	err := s.db.Update(ctx, TaskPath(id), docstore.Fields{"title": strings.TrimSpace(title)})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task title: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpdateStatus sets the task status. Marking done records who completed it
// and when; returning to pending clears those fields.
func (s *TaskStore) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, actorID, actorName string) (*model.Task, error) {
	var updates docstore.Fields
	switch status {
	case model.TaskDone:
		updates = docstore.Fields{
			"status":            string(status),
			"completedAt":       docstore.ServerTimestamp,
			"completedByUserId": actorID,
		}
		if actorName != "" {
			updates["completedByName"] = actorName
		} else {
			updates["completedByName"] = docstore.DeleteField
		}
	case model.TaskPending:
		updates = docstore.Fields{
			"status":            string(status),
			"completedAt":       docstore.DeleteField,
			"completedByUserId": docstore.DeleteField,
			"completedByName":   docstore.DeleteField,
		}
	default:
		return nil, fmt.Errorf("invalid task status %q", status)
	}

	err := s.db.Update(ctx, TaskPath(id), updates)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the task document. Reaction markers under it are left in
// place.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, TaskPath(id)); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
