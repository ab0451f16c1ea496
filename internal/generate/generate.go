// Package generate seeds each household's daily task list from its
// recurring templates.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/choreday/internal/datekey"
	"github.com/dukerupert/choreday/internal/model"
)

// Scope selects how GenerateAll finds the households to generate for.
type Scope string

const (
	// ScopeDiscover scans every household's templates for ones active today.
	ScopeDiscover Scope = "discover"
	// ScopeEnumerate generates for every household that has templates.
	ScopeEnumerate Scope = "enumerate"
)

// ParseScope accepts "discover" or "enumerate". An empty string is
// ScopeDiscover.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeDiscover:
		return ScopeDiscover, nil
	case ScopeEnumerate:
		return ScopeEnumerate, nil
	}
	return "", fmt.Errorf("unknown generation scope %q", s)
}

// TemplateSource reads recurring templates.
type TemplateSource interface {
	ListActive(ctx context.Context, householdID string, weekday int) ([]model.DefaultTask, error)
	ListActiveHouseholds(ctx context.Context, weekday int) ([]string, error)
	ListHouseholdIDs(ctx context.Context) ([]string, error)
}

// TaskSink checks for and creates generated tasks.
type TaskSink interface {
	ExistsForDay(ctx context.Context, householdID, dateKey, title string) (bool, error)
	CreateGenerated(ctx context.Context, householdID, title, dateKey string) (string, error)
}

// Notifier is told about households that received new tasks.
type Notifier interface {
	NotifyGenerated(ctx context.Context, householdID string, titles []string)
}

// Result describes one household's generation run.
type Result struct {
	HouseholdID string   `json:"householdId"`
	DateKey     string   `json:"dateKey"`
	Created     []string `json:"created"`
	Skipped     []string `json:"skipped"`
}

// BatchResult describes a GenerateAll run. Err aggregates the failures of
// individual households; the households that succeeded are unaffected.
type BatchResult struct {
	DateKey    string
	Households int
	Results    []Result
	Failed     []string
	Err        error
}

// Generator creates today's tasks from templates.
type Generator struct {
	templates   TemplateSource
	tasks       TaskSink
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

type Option func(*Generator)

// WithClock overrides the clock used to pick today's date.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithNotifier sets a notifier for households that received new tasks.
func WithNotifier(n Notifier) Option {
	return func(g *Generator) { g.notifier = n }
}

// WithConcurrency bounds how many households GenerateAll works on at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func New(templates TemplateSource, tasks TaskSink, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		templates:   templates,
		tasks:       tasks,
		logger:      logger,
		now:         time.Now,
		concurrency: 8,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GenerateForHousehold creates today's tasks for one household. Templates
// with blank titles are ignored, and titles that already have a task today
// are skipped. The existence check and the insert are not atomic, so two
// overlapping runs for the same household can both create a task.
func (g *Generator) GenerateForHousehold(ctx context.Context, householdID string) (Result, error) {
	res, err := g.generate(ctx, householdID, g.now())
	if err != nil {
		return res, err
	}
	g.notify(ctx, res)
	return res, nil
}

func (g *Generator) notify(ctx context.Context, res Result) {
	if g.notifier != nil && len(res.Created) > 0 {
		g.notifier.NotifyGenerated(ctx, res.HouseholdID, res.Created)
	}
}

func (g *Generator) generate(ctx context.Context, householdID string, now time.Time) (Result, error) {
	res := Result{HouseholdID: householdID, DateKey: datekey.Key(now)}

	templates, err := g.templates.ListActive(ctx, householdID, datekey.Weekday(now))
	if err != nil {
		return res, fmt.Errorf("generate for %s: %w", householdID, err)
	}

	for _, tmpl := range templates {
		title := strings.TrimSpace(tmpl.Title)
		if title == "" {
			continue
		}
		exists, err := g.tasks.ExistsForDay(ctx, householdID, res.DateKey, title)
		if err != nil {
			return res, fmt.Errorf("generate for %s: %w", householdID, err)
		}
		if exists {
			res.Skipped = append(res.Skipped, title)
			continue
		}
		if _, err := g.tasks.CreateGenerated(ctx, householdID, title, res.DateKey); err != nil {
			return res, fmt.Errorf("generate for %s: %w", householdID, err)
		}
		res.Created = append(res.Created, title)
	}

	g.logger.Info("generated daily tasks",
		"household", householdID,
		"date_key", res.DateKey,
		"created", len(res.Created),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// Households resolves the household ids scope covers for the given time.
func (g *Generator) Households(ctx context.Context, scope Scope, now time.Time) ([]string, error) {
	switch scope {
	case ScopeDiscover:
		ids, err := g.templates.ListActiveHouseholds(ctx, datekey.Weekday(now))
		if err != nil {
			return nil, fmt.Errorf("discover households: %w", err)
		}
		return ids, nil
	case ScopeEnumerate:
		ids, err := g.templates.ListHouseholdIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate households: %w", err)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("unknown generation scope %q", scope)
}

// GenerateAll generates today's tasks for every household in scope. Each
// household is independent: a failure is logged and recorded in the
// BatchResult without stopping the others. Notifications go out once every
// household has been generated. The returned error is non-nil only when the
// household set itself cannot be resolved.
func (g *Generator) GenerateAll(ctx context.Context, scope Scope) (BatchResult, error) {
	now := g.now()
	batch := BatchResult{DateKey: datekey.Key(now)}

	ids, err := g.Households(ctx, scope, now)
	if err != nil {
		return batch, err
	}
	batch.Households = len(ids)

	var (
		mu  sync.Mutex
		eg  errgroup.Group
		all = make([]Result, len(ids))
		ok  = make([]bool, len(ids))
	)
	eg.SetLimit(g.concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			res, err := g.generate(ctx, id, now)
			if err != nil {
				g.logger.Error("daily generation failed", "household", id, "error", err)
				mu.Lock()
				batch.Failed = append(batch.Failed, id)
				batch.Err = multierr.Append(batch.Err, err)
				mu.Unlock()
				return nil
			}
			all[i] = res
			ok[i] = true
			return nil
		})
	}
	_ = eg.Wait()
	sort.Strings(batch.Failed)

	for i := range all {
		if ok[i] {
			batch.Results = append(batch.Results, all[i])
		}
	}

	var wg sync.WaitGroup
	for _, res := range batch.Results {
		wg.Go(func() { g.notify(ctx, res) })
	}
	wg.Wait()

	g.logger.Info("daily generation finished",
		"scope", string(scope),
		"date_key", batch.DateKey,
		"households", batch.Households,
		"failed", len(batch.Failed),
	)
	return batch, nil
}
