package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
)

type PushStore struct {
	db docstore.Store
}

func NewPushStore(db docstore.Store) *PushStore {
	return &PushStore{db: db}
}

// subscriptionID derives a stable document id from the endpoint so that
// re-subscribing a device overwrites its previous record.
func subscriptionID(endpoint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(endpoint)).String()
}

func setSubscriptionID(sub *model.PushSubscription, snap *docstore.Snapshot) {
	sub.ID = snap.ID()
}

func (s *PushStore) CreateSubscription(ctx context.Context, userID, householdID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	id := subscriptionID(endpoint)
	err := s.db.Set(ctx, docstore.Doc(pushSubsCol, id), docstore.Fields{
		"userId":      userID,
		"householdId": householdID,
		"endpoint":    endpoint,
		"p256dh":      p256dh,
		"auth":        auth,
		"deviceName":  deviceName,
		"createdAt":   docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}

	snap, err := s.db.Get(ctx, docstore.Doc(pushSubsCol, id))
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	var sub model.PushSubscription
	if err := snap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("decode push subscription: %w", err)
	}
	sub.ID = id
	return &sub, nil
}

func (s *PushStore) list(ctx context.Context, q docstore.Query) ([]model.PushSubscription, error) {
	snaps, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeSnapshots(snaps, setSubscriptionID)
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	subs, err := s.list(ctx, docstore.Collection(pushSubsCol).Where("userId", docstore.Equal, userID))
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	return subs, nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if err := s.db.Delete(ctx, docstore.Doc(pushSubsCol, subscriptionID(endpoint))); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
