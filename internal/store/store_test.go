package store

import (
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/choreday/internal/docstore"
)

// tickingClock returns a clock that advances one second per reading.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func setupTestDB(t *testing.T, opts ...docstore.Option) *docstore.DB {
	t.Helper()
	opts = append([]docstore.Option{docstore.WithClock(tickingClock())}, opts...)
	db, err := docstore.OpenSQLite(":memory:", opts...)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
