package store

import (
	"errors"

	"github.com/dukerupert/choreday/internal/docstore"
)

// Collection names.
const (
	householdsCol   = "households"
	usersCol        = "users"
	tasksCol        = "tasks"
	defaultTasksCol = "default_tasks"
	itemsCol        = "items"
	stampsCol       = "stamps"
	pushSubsCol     = "push_subscriptions"
)

var (
	ErrInviteNotFound    = errors.New("invite code not found")
	ErrHouseholdNotFound = errors.New("household not found")
	ErrTaskNotFound      = errors.New("task not found")
)

// Indexes lists the composite indexes the stores' ordered queries rely on.
// Listing tasks still works without them, just unordered by the store.
var Indexes = []docstore.Index{
	{Collection: tasksCol, Fields: []string{"householdId", "dateKey"}, OrderBy: []string{"createdAt"}},
}

// TaskPath is the document path of a task.
func TaskPath(taskID string) string {
	return docstore.Doc(tasksCol, taskID)
}

// StampPath is the document path of the reaction marker userID left on a
// task with kind.
func StampPath(taskID, stampID string) string {
	return docstore.Doc(tasksCol, taskID, stampsCol, stampID)
}

// StampsCollection is the collection-group id holding reaction markers.
const StampsCollection = stampsCol

func templatesPath(householdID string) string {
	return docstore.Doc(defaultTasksCol, householdID, itemsCol)
}

func decodeSnapshots[T any](snaps []*docstore.Snapshot, setID func(*T, *docstore.Snapshot)) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		var v T
		if err := snap.DataTo(&v); err != nil {
			return nil, err
		}
		setID(&v, snap)
		out = append(out, v)
	}
	return out, nil
}
