package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
)

// DefaultHouseholdName is used when a household is created with a blank name.
const DefaultHouseholdName = "家族"

const (
	inviteAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength = 6
)

type HouseholdStore struct {
	db docstore.Store
}

func NewHouseholdStore(db docstore.Store) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func householdPath(id string) string {
	return docstore.Doc(householdsCol, id)
}

func userPath(id string) string {
	return docstore.Doc(usersCol, id)
}

func randomInviteCode() string {
	var b strings.Builder
	for i := 0; i < inviteCodeLength; i++ {
		b.WriteByte(inviteAlphabet[rand.IntN(len(inviteAlphabet))])
	}
	return b.String()
}

func decodeHousehold(snap *docstore.Snapshot) (*model.Household, error) {
	var h model.Household
	if err := snap.DataTo(&h); err != nil {
		return nil, err
	}
	h.ID = snap.ID()
	return &h, nil
}

// Create makes a household with userID as its only member and points the
// user's profile at it.
func (s *HouseholdStore) Create(ctx context.Context, userID, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultHouseholdName
	}
	id, err := s.db.Add(ctx, householdsCol, docstore.Fields{
		"name":       name,
		"inviteCode": randomInviteCode(),
		"members":    []string{userID},
		"createdAt":  docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	if err := s.db.Set(ctx, userPath(userID), docstore.Fields{"householdId": id}, docstore.Merge()); err != nil {
		return nil, fmt.Errorf("assign household: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	snap, err := s.db.Get(ctx, householdPath(id))
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	h, err := decodeHousehold(snap)
	if err != nil {
		return nil, fmt.Errorf("decode household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) RegenerateInviteCode(ctx context.Context, id string) (string, error) {
	code := randomInviteCode()
	if err := s.db.Update(ctx, householdPath(id), docstore.Fields{"inviteCode": code}); err != nil {
		return "", fmt.Errorf("regenerate invite code: %w", err)
	}
	return code, nil
}

// JoinByInvite adds userID to the household holding code and moves the
// user's profile to it. Codes match case-insensitively.
func (s *HouseholdStore) JoinByInvite(ctx context.Context, userID, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	snaps, err := s.db.Query(ctx, docstore.Collection(householdsCol).
		Where("inviteCode", docstore.Equal, code).
		Limit(1))
	if err != nil {
		return "", fmt.Errorf("find invite code: %w", err)
	}
	if len(snaps) == 0 {
		return "", ErrInviteNotFound
	}
	id := snaps[0].ID()

	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, householdPath(id))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return ErrHouseholdNotFound
		}
		h, err := decodeHousehold(snap)
		if err != nil {
			return err
		}
		if !h.HasMember(userID) {
			if err := tx.Update(householdPath(id), docstore.Fields{"members": append(h.Members, userID)}); err != nil {
				return err
			}
		}
		return tx.Set(userPath(userID), docstore.Fields{"householdId": id}, docstore.Merge())
	})
	if err != nil {
		return "", fmt.Errorf("join household: %w", err)
	}
	return id, nil
}

// Leave removes userID from the household. The user falls back to a personal
// household id equal to their own user id, whether or not it exists.
func (s *HouseholdStore) Leave(ctx context.Context, userID, householdID string) error {
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, householdPath(householdID))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return ErrHouseholdNotFound
		}
		h, err := decodeHousehold(snap)
		if err != nil {
			return err
		}
		members := make([]string, 0, len(h.Members))
		for _, m := range h.Members {
			if m != userID {
				members = append(members, m)
			}
		}
		if err := tx.Update(householdPath(householdID), docstore.Fields{"members": members}); err != nil {
			return err
		}
		return tx.Set(userPath(userID), docstore.Fields{"householdId": userID}, docstore.Merge())
	})
	if err != nil {
		return fmt.Errorf("leave household: %w", err)
	}
	return nil
}
