package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type writeKind int

const (
	writeCreate writeKind = iota
	writeSet
	writeMerge
	writeUpdate
	writeDelete
)

type write struct {
	kind   writeKind
	path   string
	fields Fields
}

func newSetWrite(path string, fields Fields, opts []SetOption) write {
	var cfg setConfig
	for _, o := range opts {
		o(&cfg)
	}
	kind := writeSet
	if cfg.merge {
		kind = writeMerge
	}
	return write{kind: kind, path: path, fields: fields}
}

func validateWrite(w write) error {
	if _, _, err := splitDoc(w.path); err != nil {
		return err
	}
	if w.kind == writeUpdate {
		for field := range w.fields {
			if err := checkField(field); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyWrite computes the next state of a document. The current map is
// never modified.
func applyWrite(current map[string]any, exists bool, w write, now time.Time) (map[string]any, bool, error) {
	var next map[string]any
	switch w.kind {
	case writeCreate:
		if exists {
			return nil, false, fmt.Errorf("create %s: %w", w.path, ErrAlreadyExists)
		}
		next = resolveMap(w.fields, now)
	case writeSet:
		next = resolveMap(w.fields, now)
	case writeMerge:
		next = cloneMap(current)
		if next == nil {
			next = map[string]any{}
		}
		mergeMap(next, w.fields, now)
	case writeUpdate:
		if !exists {
			return nil, false, fmt.Errorf("update %s: %w", w.path, ErrNotFound)
		}
		next = cloneMap(current)
		keys := make([]string, 0, len(w.fields))
		for k := range w.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			setPath(next, strings.Split(k, "."), w.fields[k], now)
		}
	case writeDelete:
		return nil, false, nil
	}

	normalized, err := normalizeMap(next)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", w.path, err)
	}
	return normalized, true, nil
}

func resolveMap(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(deleteFieldOp); ok {
			continue
		}
		out[k] = resolveValue(nil, v, now)
	}
	return out
}

func mergeMap(dst map[string]any, fields map[string]any, now time.Time) {
	for k, v := range fields {
		if _, ok := v.(deleteFieldOp); ok {
			delete(dst, k)
			continue
		}
		if sub, ok := asMap(v); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeMap(existing, sub, now)
				continue
			}
		}
		dst[k] = resolveValue(dst[k], v, now)
	}
}

func setPath(dst map[string]any, parts []string, v any, now time.Time) {
	key := parts[0]
	if len(parts) == 1 {
		if _, ok := v.(deleteFieldOp); ok {
			delete(dst, key)
			return
		}
		dst[key] = resolveValue(dst[key], v, now)
		return
	}
	child, ok := dst[key].(map[string]any)
	if !ok {
		if _, isDelete := v.(deleteFieldOp); isDelete {
			return
		}
		child = map[string]any{}
		dst[key] = child
	}
	setPath(child, parts[1:], v, now)
}

func resolveValue(existing, v any, now time.Time) any {
	switch t := v.(type) {
	case incrementOp:
		base, _ := toFloat(existing)
		return base + t.n
	case serverTimestampOp:
		return now
	}
	if m, ok := asMap(v); ok {
		return resolveMap(m, now)
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Fields:
		return map[string]any(t), true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// normalizeMap converts a document into its stored JSON shape: numbers become
// float64, timestamps fixed-width UTC strings, slices []any.
func normalizeMap(m map[string]any) (map[string]any, error) {
	v, err := normalize(m)
	if err != nil {
		return nil, err
	}
	out, _ := v.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(prepare(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func prepare(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(timeLayout)
	case Fields:
		return prepare(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = prepare(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = prepare(x)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// compareValues orders two normalized values. Values of different kinds
// order by kind: null, bool, number, string, then everything else.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// lookup reads a dotted field path from a document.
func lookup(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
