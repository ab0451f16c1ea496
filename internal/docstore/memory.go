package docstore

import (
	"context"
	"sync"
)

type memDoc struct {
	data    map[string]any
	version int64
}

type memoryEngine struct {
	mu   sync.Mutex
	docs map[string]memDoc
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *DB {
	return newDB(&memoryEngine{docs: make(map[string]memDoc)}, opts)
}

func (e *memoryEngine) get(_ context.Context, path string) (map[string]any, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.docs[path]
	if !ok {
		return nil, 0, nil
	}
	return cloneMap(doc.data), doc.version, nil
}

func (e *memoryEngine) query(_ context.Context, q Query, filterValues []any) ([]*Snapshot, error) {
	e.mu.Lock()
	var out []*Snapshot
	for path, doc := range e.docs {
		collection, _, _ := splitDoc(path)
		if q.group {
			if collectionID(collection) != q.collection {
				continue
			}
		} else if collection != q.collection {
			continue
		}
		if !q.matches(doc.data, filterValues) {
			continue
		}
		out = append(out, newSnapshot(path, cloneMap(doc.data), doc.version))
	}
	e.mu.Unlock()

	q.sortSnapshots(out)
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

func (e *memoryEngine) begin(_ context.Context) (engineTx, error) {
	e.mu.Lock()
	return &memoryTx{e: e, pending: make(map[string]memDoc)}, nil
}

func (e *memoryEngine) close() error { return nil }

type memoryTx struct {
	e       *memoryEngine
	pending map[string]memDoc
	done    bool
}

func (t *memoryTx) load(path string) (map[string]any, int64, error) {
	doc, ok := t.e.docs[path]
	if !ok {
		return nil, 0, nil
	}
	return cloneMap(doc.data), doc.version, nil
}

func (t *memoryTx) store(path string, data map[string]any, version int64) error {
	t.pending[path] = memDoc{data: cloneMap(data), version: version}
	return nil
}

func (t *memoryTx) remove(path string) error {
	t.pending[path] = memDoc{}
	return nil
}

func (t *memoryTx) commit() error {
	for path, doc := range t.pending {
		if doc.version == 0 {
			delete(t.e.docs, path)
			continue
		}
		t.e.docs[path] = doc
	}
	t.done = true
	t.e.mu.Unlock()
	return nil
}

func (t *memoryTx) rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.e.mu.Unlock()
	return nil
}
