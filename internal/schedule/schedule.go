// Package schedule fires the daily task generation once a day at a fixed
// wall-clock time in Japan.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/choreday/internal/datekey"
	"github.com/dukerupert/choreday/internal/generate"
)

// Runner runs one batch generation.
type Runner interface {
	GenerateAll(ctx context.Context, scope generate.Scope) (generate.BatchResult, error)
}

// Scheduler triggers Runner daily. Firings are not persisted, so a restart
// after the configured time waits for the next day.
type Scheduler struct {
	mu     sync.RWMutex
	runner Runner
	scope  generate.Scope
	hour   int
	minute int
	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// New creates a scheduler that runs at the "HH:MM" time at.
func New(runner Runner, scope generate.Scope, at string, logger *slog.Logger) (*Scheduler, error) {
	hour, minute, err := ParseTimeOfDay(at)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		runner: runner,
		scope:  scope,
		hour:   hour,
		minute: minute,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the next firing time after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return datekey.NextAt(now, s.hour, s.minute)
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			now := s.now()
			next := s.Next(now)
			s.logger.Info("next daily generation scheduled", "at", next.Format(time.RFC3339))
			select {
			case <-ctx.Done():
				return
			case <-s.after(next.Sub(now)):
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce runs one generation and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	batch, err := s.runner.GenerateAll(ctx, s.scope)
	if err != nil {
		s.logger.Error("scheduled generation failed", "scope", string(s.scope), "error", err)
		return
	}
	attrs := []any{
		"scope", string(s.scope),
		"date_key", batch.DateKey,
		"households", batch.Households,
		"failed", len(batch.Failed),
	}
	if batch.Err != nil {
		s.logger.Warn("scheduled generation finished with failures", append(attrs, "error", batch.Err)...)
		return
	}
	s.logger.Info("scheduled generation finished", attrs...)
}
