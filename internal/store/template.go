package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/choreday/internal/datekey"
	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
)

// TemplateStore manages recurring task templates, stored per household under
// default_tasks/{householdID}/items.
type TemplateStore struct {
	db  docstore.Store
	now func() time.Time
}

func NewTemplateStore(db docstore.Store) *TemplateStore {
	return &TemplateStore{db: db, now: time.Now}
}

func setTemplateID(d *model.DefaultTask, snap *docstore.Snapshot) {
	d.ID = snap.ID()
	d.HouseholdID = snap.ParentID()
}

func (s *TemplateStore) path(householdID, id string) string {
	return docstore.Doc(defaultTasksCol, householdID, itemsCol, id)
}

// List returns the household's templates in display order.
func (s *TemplateStore) List(ctx context.Context, householdID string) ([]model.DefaultTask, error) {
	snaps, err := s.db.Query(ctx, docstore.Collection(templatesPath(householdID)).OrderBy("order", docstore.Asc))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	items, err := decodeSnapshots(snaps, setTemplateID)
	if err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return items, nil
}

// ListActive returns the household's templates that recur on weekday.
func (s *TemplateStore) ListActive(ctx context.Context, householdID string, weekday int) ([]model.DefaultTask, error) {
	snaps, err := s.db.Query(ctx, docstore.Collection(templatesPath(householdID)).
		Where("daysOfWeek", docstore.ArrayContains, weekday))
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	items, err := decodeSnapshots(snaps, setTemplateID)
	if err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return items, nil
}

// ListActiveHouseholds scans every household's templates and returns the ids
// of households with at least one template recurring on weekday. It does not
// depend on the default_tasks/{id} parent documents existing.
func (s *TemplateStore) ListActiveHouseholds(ctx context.Context, weekday int) ([]string, error) {
	snaps, err := s.db.Query(ctx, docstore.CollectionGroup(itemsCol).
		Where("daysOfWeek", docstore.ArrayContains, weekday))
	if err != nil {
		return nil, fmt.Errorf("scan active templates: %w", err)
	}
	return parentIDs(snaps), nil
}

// ListHouseholdIDs returns every household that has templates: those with a
// default_tasks/{id} parent document plus any whose items exist without one.
func (s *TemplateStore) ListHouseholdIDs(ctx context.Context) ([]string, error) {
	parents, err := s.db.Query(ctx, docstore.Collection(defaultTasksCol))
	if err != nil {
		return nil, fmt.Errorf("list template households: %w", err)
	}
	items, err := s.db.Query(ctx, docstore.CollectionGroup(itemsCol))
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, snap := range parents {
		if !seen[snap.ID()] {
			seen[snap.ID()] = true
			ids = append(ids, snap.ID())
		}
	}
	for _, id := range parentIDs(items) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func parentIDs(snaps []*docstore.Snapshot) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, snap := range snaps {
		id := snap.ParentID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create adds a template. The household's parent document is touched first
// so enumeration can find it. A nil order defaults to the current time in
// milliseconds, placing the template last.
func (s *TemplateStore) Create(ctx context.Context, householdID, title string, daysOfWeek []int, order *int64) (*model.DefaultTask, error) {
	if err := s.db.Set(ctx, docstore.Doc(defaultTasksCol, householdID),
		docstore.Fields{"touchedAt": docstore.ServerTimestamp}, docstore.Merge()); err != nil {
		return nil, fmt.Errorf("touch template parent: %w", err)
	}

	o := s.now().UnixMilli()
	if order != nil {
		o = *order
	}
	id, err := s.db.Add(ctx, templatesPath(householdID), docstore.Fields{
		"title":      strings.TrimSpace(title),
		"daysOfWeek": datekey.NormalizeDays(daysOfWeek),
		"order":      o,
		"createdAt":  docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return s.GetByID(ctx, householdID, id)
}

func (s *TemplateStore) GetByID(ctx context.Context, householdID, id string) (*model.DefaultTask, error) {
	snap, err := s.db.Get(ctx, s.path(householdID, id))
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	var d model.DefaultTask
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	setTemplateID(&d, snap)
	return &d, nil
}

func (s *TemplateStore) UpdateTitle(ctx context.Context, householdID, id, title string) (*model.DefaultTask, error) {
	return s.update(ctx, householdID, id, docstore.Fields{"title": strings.TrimSpace(title)})
}

// UpdateDays replaces the recurrence days, deduplicated and sorted.
func (s *TemplateStore) UpdateDays(ctx context.Context, householdID, id string, daysOfWeek []int) (*model.DefaultTask, error) {
	return s.update(ctx, householdID, id, docstore.Fields{"daysOfWeek": datekey.NormalizeDays(daysOfWeek)})
}

func (s *TemplateStore) update(ctx context.Context, householdID, id string, fields docstore.Fields) (*model.DefaultTask, error) {
	err := s.db.Update(ctx, s.path(householdID, id), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.GetByID(ctx, householdID, id)
}

func (s *TemplateStore) Delete(ctx context.Context, householdID, id string) error {
	if err := s.db.Delete(ctx, s.path(householdID, id)); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
