// Package reaction toggles per-user emoji stamps on tasks.
//
// A stamp document under tasks/{taskID}/stamps/{userID}_{kind} is the record
// of a user's reaction. The task's reactions map caches the number of stamps
// per kind and is only ever moved by the store's increment transform inside
// the same transaction that creates or deletes the stamp.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
	"github.com/dukerupert/choreday/internal/store"
)

// Outcome reports what a toggle did.
type Outcome string

const (
	Added   Outcome = "added"
	Removed Outcome = "removed"
)

var (
	ErrInvalidKind = errors.New("invalid reaction kind")
	// ErrStampConflict means the document at a stamp id belongs to a
	// different user or kind than the one being toggled.
	ErrStampConflict = errors.New("stamp owned by another reaction")
)

// Toggler flips reaction stamps on tasks.
type Toggler struct {
	db docstore.Store
}

func NewToggler(db docstore.Store) *Toggler {
	return &Toggler{db: db}
}

// ValidKind reports whether kind can be used as a stamp id suffix and a
// field path segment. The underscore separates user id from kind in stamp
// ids, so a kind containing one could alias another user's stamp.
func ValidKind(kind string) bool {
	return kind != "" && !strings.ContainsAny(kind, "/._")
}

// Toggle adds the user's stamp of kind to the task if it is absent and
// removes it otherwise, adjusting the task's counter for kind by one in the
// same transaction. The thanks kind also moves the legacy thanksCount field.
func (t *Toggler) Toggle(ctx context.Context, taskID, userID, kind string) (Outcome, error) {
	if !ValidKind(kind) {
		return "", fmt.Errorf("toggle reaction %q: %w", kind, ErrInvalidKind)
	}
	if userID == "" || strings.Contains(userID, "/") {
		return "", fmt.Errorf("toggle reaction: invalid user id %q", userID)
	}

	// The task read stays outside the transaction so that reactions from
	// different users on one task do not conflict with each other.
	taskSnap, err := t.db.Get(ctx, store.TaskPath(taskID))
	if err != nil {
		return "", fmt.Errorf("get task: %w", err)
	}
	if !taskSnap.Exists() {
		return "", store.ErrTaskNotFound
	}
	dateKey, _ := taskSnap.Data()["dateKey"].(string)

	stampPath := store.StampPath(taskID, model.StampID(userID, kind))
	var outcome Outcome
	err = t.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, stampPath)
		if err != nil {
			return err
		}

		delta := 1
		outcome = Added
		if snap.Exists() {
			data := snap.Data()
			if data["fromUserId"] != userID || data["type"] != kind {
				return ErrStampConflict
			}
			delta = -1
			outcome = Removed
		}

		updates := docstore.Fields{"reactions." + kind: docstore.Increment(delta)}
		if kind == model.ReactionThanks {
			updates["thanksCount"] = docstore.Increment(delta)
		}
		if err := tx.Update(store.TaskPath(taskID), updates); err != nil {
			return err
		}

		if outcome == Removed {
			return tx.Delete(stampPath)
		}
		return tx.Set(stampPath, docstore.Fields{
			"type":       kind,
			"fromUserId": userID,
			"taskId":     taskID,
			"dateKey":    dateKey,
			"createdAt":  docstore.ServerTimestamp,
		})
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return "", store.ErrTaskNotFound
	}
	if err != nil {
		return "", fmt.Errorf("toggle reaction: %w", err)
	}
	return outcome, nil
}

// MyReactions returns the ids of tasks the user has stamped with kind,
// sorted.
func (t *Toggler) MyReactions(ctx context.Context, userID, kind string) ([]string, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("list reactions %q: %w", kind, ErrInvalidKind)
	}
	snaps, err := t.db.Query(ctx, docstore.CollectionGroup(store.StampsCollection).
		Where("fromUserId", docstore.Equal, userID).
		Where("type", docstore.Equal, kind))
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.ParentID())
	}
	sort.Strings(ids)
	return ids, nil
}
