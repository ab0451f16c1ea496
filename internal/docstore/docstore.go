// Package docstore is a small transactional document database.
//
// Documents live at slash-separated paths ("tasks/abc", "tasks/abc/stamps/u1_thanks")
// and hold JSON-shaped fields. Collections are addressed by their full path for
// ordinary queries, or by their final segment for collection-group queries that
// span every parent document.
//
// Two backends share the same semantics: an in-memory store for tests and
// development, and a SQLite store for production. Both run transactions
// optimistically: reads record document versions, and the commit fails with a
// conflict if any of those versions moved. RunTransaction re-runs the body on
// conflict with jittered backoff.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrAlreadyExists      = errors.New("document already exists")
	ErrConflict           = errors.New("transaction conflict")
	ErrFailedPrecondition = errors.New("failed precondition: query requires a composite index")
	ErrInvalidPath        = errors.New("invalid path")
	ErrInvalidField       = errors.New("invalid field path")
	ErrReadAfterWrite     = errors.New("transaction reads must precede writes")
)

// Fields is the content of a document, or a set of field updates.
type Fields map[string]any

// Store is the document database consumed by the rest of the application.
type Store interface {
	Get(ctx context.Context, path string) (*Snapshot, error)
	Query(ctx context.Context, q Query) ([]*Snapshot, error)
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error
	Update(ctx context.Context, path string, updates Fields) error
	Delete(ctx context.Context, path string) error
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	OnChange(fn func(Change)) (unsubscribe func())
	Close() error
}

// Tx is the view of the store inside a transaction body. Writes are buffered
// and applied atomically when the body returns nil.
type Tx interface {
	Get(ctx context.Context, path string) (*Snapshot, error)
	Set(path string, fields Fields, opts ...SetOption) error
	Update(path string, updates Fields) error
	Delete(path string) error
}

type SetOption func(*setConfig)

type setConfig struct {
	merge bool
}

// Merge makes Set combine the given fields with the existing document
// instead of replacing it.
func Merge() SetOption {
	return func(c *setConfig) { c.merge = true }
}

type incrementOp struct{ n float64 }
type deleteFieldOp struct{}
type serverTimestampOp struct{}

// Increment returns a transform that atomically adds n to a numeric field.
// A missing field is treated as zero.
func Increment(n int) any { return incrementOp{n: float64(n)} }

// DeleteField removes the field when used as an Update value.
var DeleteField any = deleteFieldOp{}

// ServerTimestamp resolves to the store clock at commit time.
var ServerTimestamp any = serverTimestampOp{}

// ChangeKind says what a committed write did to a document.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Change describes one committed document write. Data holds the document
// after the write, or the removed content for deletions.
type Change struct {
	Kind       ChangeKind
	Path       string
	Collection string
	ID         string
	Data       map[string]any
}

// CollectionID returns the final segment of the change's collection path.
func (c Change) CollectionID() string {
	return collectionID(c.Collection)
}

// Option configures a store at construction.
type Option func(*DB)

// WithClock overrides the clock used for ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(d *DB) { d.now = now }
}

// WithIndexes declares the composite indexes ordered queries may use.
func WithIndexes(indexes ...Index) Option {
	return func(d *DB) {
		for _, idx := range indexes {
			d.indexes[idx.key()] = true
		}
	}
}

// WithMaxAttempts bounds how many times a transaction body runs.
func WithMaxAttempts(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithIDGenerator overrides the id source used by Add.
func WithIDGenerator(fn func() string) Option {
	return func(d *DB) { d.newID = fn }
}
