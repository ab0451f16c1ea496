package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const defaultMaxAttempts = 5

// engine is the storage a DB runs on. Versions start at 1; version 0 means
// the document does not exist.
type engine interface {
	get(ctx context.Context, path string) (map[string]any, int64, error)
	query(ctx context.Context, q Query, filterValues []any) ([]*Snapshot, error)
	begin(ctx context.Context) (engineTx, error)
	close() error
}

// engineTx is an exclusive write section. Loads inside it observe every
// commit that finished before it began.
type engineTx interface {
	load(path string) (map[string]any, int64, error)
	store(path string, data map[string]any, version int64) error
	remove(path string) error
	commit() error
	rollback() error
}

// DB implements Store on top of an engine.
type DB struct {
	eng         engine
	now         func() time.Time
	newID       func() string
	indexes     map[string]bool
	maxAttempts int

	mu           sync.RWMutex
	listeners    map[int]func(Change)
	nextListener int
}

var _ Store = (*DB)(nil)

func newDB(eng engine, opts []Option) *DB {
	d := &DB{
		eng:         eng,
		now:         time.Now,
		newID:       func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		indexes:     make(map[string]bool),
		maxAttempts: defaultMaxAttempts,
		listeners:   make(map[int]func(Change)),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *DB) Get(ctx context.Context, path string) (*Snapshot, error) {
	if _, _, err := splitDoc(path); err != nil {
		return nil, err
	}
	data, version, err := d.eng.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return newSnapshot(path, data, version), nil
}

func (d *DB) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if idx, ok := q.requiredIndex(); ok && !d.indexes[idx.key()] {
		return nil, fmt.Errorf("query %s on %v ordered by %v: %w", idx.Collection, idx.Fields, idx.OrderBy, ErrFailedPrecondition)
	}
	values, err := q.normalizedFilterValues()
	if err != nil {
		return nil, err
	}
	snaps, err := d.eng.query(ctx, q, values)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, err)
	}
	return snaps, nil
}

func (d *DB) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	id := d.newID()
	w := write{kind: writeCreate, path: collection + "/" + id, fields: fields}
	if err := d.commit(ctx, nil, []write{w}); err != nil {
		return "", err
	}
	return id, nil
}

func (d *DB) Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error {
	return d.commit(ctx, nil, []write{newSetWrite(path, fields, opts)})
}

func (d *DB) Update(ctx context.Context, path string, updates Fields) error {
	return d.commit(ctx, nil, []write{{kind: writeUpdate, path: path, fields: updates}})
}

func (d *DB) Delete(ctx context.Context, path string) error {
	return d.commit(ctx, nil, []write{{kind: writeDelete, path: path}})
}

// RunTransaction runs fn and commits its buffered writes atomically. If a
// document fn read changed before the commit, fn runs again against fresh
// data, up to the configured number of attempts. Exhausted attempts return
// an error wrapping ErrConflict.
func (d *DB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	b := retry.NewExponential(5 * time.Millisecond)
	b = retry.WithCappedDuration(250*time.Millisecond, b)
	b = retry.WithJitterPercent(25, b)
	b = retry.WithMaxRetries(uint64(d.maxAttempts-1), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		tx := &transaction{db: d, reads: make(map[string]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if len(tx.writes) == 0 {
			return nil
		}
		err := d.commit(ctx, tx.reads, tx.writes)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// OnChange registers fn to receive every committed write. The returned
// function removes the listener.
func (d *DB) OnChange(fn func(Change)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *DB) Close() error {
	return d.eng.close()
}

type docState struct {
	before  bool
	prior   map[string]any
	data    map[string]any
	exists  bool
	version int64
}

func (d *DB) commit(ctx context.Context, reads map[string]int64, writes []write) error {
	for _, w := range writes {
		if err := validateWrite(w); err != nil {
			return err
		}
	}

	etx, err := d.eng.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer etx.rollback()

	for path, seen := range reads {
		_, current, err := etx.load(path)
		if err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}
		if current != seen {
			return fmt.Errorf("%s changed during transaction: %w", path, ErrConflict)
		}
	}

	now := d.now()
	states := make(map[string]*docState)
	var order []string
	for _, w := range writes {
		st, ok := states[w.path]
		if !ok {
			data, version, err := etx.load(w.path)
			if err != nil {
				return fmt.Errorf("load %s: %w", w.path, err)
			}
			st = &docState{before: version > 0, prior: cloneMap(data), data: data, exists: version > 0, version: version}
			states[w.path] = st
			order = append(order, w.path)
		}
		st.data, st.exists, err = applyWrite(st.data, st.exists, w, now)
		if err != nil {
			return err
		}
	}

	changes := make([]Change, 0, len(order))
	for _, path := range order {
		st := states[path]
		collection, id, _ := splitDoc(path)
		change := Change{Path: path, Collection: collection, ID: id}
		switch {
		case st.exists:
			if err := etx.store(path, st.data, st.version+1); err != nil {
				return fmt.Errorf("store %s: %w", path, err)
			}
			change.Kind = Updated
			if !st.before {
				change.Kind = Created
			}
			change.Data = cloneMap(st.data)
		case st.before:
			if err := etx.remove(path); err != nil {
				return fmt.Errorf("remove %s: %w", path, err)
			}
			change.Kind = Deleted
			change.Data = st.prior
		default:
			continue
		}
		changes = append(changes, change)
	}

	if err := etx.commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	d.notify(changes)
	return nil
}

func (d *DB) notify(changes []Change) {
	d.mu.RLock()
	listeners := make([]func(Change), 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

type transaction struct {
	db     *DB
	reads  map[string]int64
	writes []write
}

func (t *transaction) Get(ctx context.Context, path string) (*Snapshot, error) {
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	snap, err := t.db.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, ok := t.reads[path]; !ok {
		t.reads[path] = snap.version
	}
	return snap, nil
}

func (t *transaction) Set(path string, fields Fields, opts ...SetOption) error {
	w := newSetWrite(path, fields, opts)
	if err := validateWrite(w); err != nil {
		return err
	}
	t.writes = append(t.writes, w)
	return nil
}

func (t *transaction) Update(path string, updates Fields) error {
	w := write{kind: writeUpdate, path: path, fields: updates}
	if err := validateWrite(w); err != nil {
		return err
	}
	t.writes = append(t.writes, w)
	return nil
}

func (t *transaction) Delete(path string) error {
	w := write{kind: writeDelete, path: path}
	if err := validateWrite(w); err != nil {
		return err
	}
	t.writes = append(t.writes, w)
	return nil
}
