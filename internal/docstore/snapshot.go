package docstore

import (
	"encoding/json"
	"fmt"
)

// Snapshot is a point-in-time copy of a document.
type Snapshot struct {
	path    string
	data    map[string]any
	version int64
}

func newSnapshot(path string, data map[string]any, version int64) *Snapshot {
	return &Snapshot{path: path, data: data, version: version}
}

// Path returns the full document path.
func (s *Snapshot) Path() string { return s.path }

// ID returns the last segment of the document path.
func (s *Snapshot) ID() string {
	_, id, _ := splitDoc(s.path)
	return id
}

// ParentID returns the id of the document that owns this document's
// collection, or "" for top-level documents.
func (s *Snapshot) ParentID() string { return parentID(s.path) }

// Exists reports whether the document was present when read.
func (s *Snapshot) Exists() bool { return s.version > 0 }

// Data returns a deep copy of the document fields, or nil if absent.
func (s *Snapshot) Data() map[string]any {
	if !s.Exists() {
		return nil
	}
	return cloneMap(s.data)
}

// DataTo decodes the document into v using its json tags.
func (s *Snapshot) DataTo(v any) error {
	if !s.Exists() {
		return fmt.Errorf("decode %s: %w", s.path, ErrNotFound)
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	return nil
}
