package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	Equal         Op = "=="
	ArrayContains Op = "array-contains"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

// Query selects documents from one collection, or from every collection with
// a given id when built with CollectionGroup. Queries are values; each
// builder method returns a modified copy.
type Query struct {
	collection string
	group      bool
	filters    []Filter
	orders     []Order
	limit      int
}

// Collection starts a query over the collection at path.
func Collection(path string) Query {
	return Query{collection: path}
}

// CollectionGroup starts a query over every collection named id, whatever
// document it hangs under.
func CollectionGroup(id string) Query {
	return Query{collection: id, group: true}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.filters = append(append([]Filter(nil), q.filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, dir Direction) Query {
	q.orders = append(append([]Order(nil), q.orders...), Order{Field: field, Direction: dir})
	return q
}

func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

func (q Query) collectionID() string {
	if q.group {
		return q.collection
	}
	return collectionID(q.collection)
}

func (q Query) validate() error {
	if q.group {
		if q.collection == "" || strings.Contains(q.collection, "/") {
			return fmt.Errorf("%w: collection group %q", ErrInvalidPath, q.collection)
		}
	} else if err := checkCollection(q.collection); err != nil {
		return err
	}
	for _, f := range q.filters {
		if err := checkField(f.Field); err != nil {
			return err
		}
		if f.Op != Equal && f.Op != ArrayContains {
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	for _, o := range q.orders {
		if err := checkField(o.Field); err != nil {
			return err
		}
	}
	if q.limit < 0 {
		return fmt.Errorf("negative limit %d", q.limit)
	}
	return nil
}

// Index declares a composite index: equality or array-contains filters on
// Fields combined with ordering on OrderBy.
type Index struct {
	Collection string
	Fields     []string
	OrderBy    []string
}

func (i Index) key() string {
	fields := append([]string(nil), i.Fields...)
	sort.Strings(fields)
	return i.Collection + "|" + strings.Join(fields, ",") + "|" + strings.Join(i.OrderBy, ",")
}

// requiredIndex reports the index a query needs, if any. Filters alone and
// ordering alone are served by single-field indexes.
func (q Query) requiredIndex() (Index, bool) {
	if len(q.filters) == 0 || len(q.orders) == 0 {
		return Index{}, false
	}
	idx := Index{Collection: q.collectionID()}
	for _, f := range q.filters {
		idx.Fields = append(idx.Fields, f.Field)
	}
	for _, o := range q.orders {
		idx.OrderBy = append(idx.OrderBy, o.Field)
	}
	return idx, true
}

// matches evaluates the query's filters against a stored document.
func (q Query) matches(data map[string]any, filterValues []any) bool {
	for i, f := range q.filters {
		v, ok := lookup(data, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case Equal:
			if compareValues(v, filterValues[i]) != 0 {
				return false
			}
		case ArrayContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			found := false
			for _, el := range arr {
				if compareValues(el, filterValues[i]) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// sortSnapshots orders results by the query's orderings with the document
// path as the final tie-break.
func (q Query) sortSnapshots(snaps []*Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		for _, o := range q.orders {
			a, _ := lookup(snaps[i].data, o.Field)
			b, _ := lookup(snaps[j].data, o.Field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if o.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return snaps[i].path < snaps[j].path
	})
}

func (q Query) normalizedFilterValues() ([]any, error) {
	out := make([]any, len(q.filters))
	for i, f := range q.filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		out[i] = v
	}
	return out, nil
}
