package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
)

type UserStore struct {
	db docstore.Store
}

func NewUserStore(db docstore.Store) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	snap, err := s.db.Get(ctx, userPath(id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	var u model.UserProfile
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u.ID = snap.ID()
	return &u, nil
}

// Ensure creates the profile on first sight of a user. New users start in a
// personal household named after their own id.
func (s *UserStore) Ensure(ctx context.Context, id, name, email string) (*model.UserProfile, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	err = s.db.Set(ctx, userPath(id), docstore.Fields{
		"name":        strings.TrimSpace(name),
		"email":       strings.TrimSpace(email),
		"householdId": id,
	}, docstore.Merge())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) UpdateName(ctx context.Context, id, name string) (*model.UserProfile, error) {
	err := s.db.Set(ctx, userPath(id), docstore.Fields{"name": strings.TrimSpace(name)}, docstore.Merge())
	if err != nil {
		return nil, fmt.Errorf("update user name: %w", err)
	}
	return s.GetByID(ctx, id)
}
