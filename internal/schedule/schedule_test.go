package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/choreday/internal/generate"
)

type fakeRunner struct {
	calls chan generate.Scope
	err   error
}

func (f *fakeRunner) GenerateAll(_ context.Context, scope generate.Scope) (generate.BatchResult, error) {
	f.calls <- scope
	return generate.BatchResult{DateKey: "2024-03-12", Households: 2}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{"05:00", 5, 0, false},
		{"23:45", 23, 45, false},
		{"24:00", 0, 0, true},
		{"5am", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseTimeOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeOfDay(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (h != tt.hour || m != tt.minute) {
			t.Errorf("ParseTimeOfDay(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestNextUsesJapanTime(t *testing.T) {
	s, err := New(&fakeRunner{}, generate.ScopeDiscover, "05:00", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// 2024-03-12 06:00 JST: today's run has passed.
	now := time.Date(2024, 3, 11, 21, 0, 0, 0, time.UTC)
	want := time.Date(2024, 3, 12, 20, 0, 0, 0, time.UTC)
	if got := s.Next(now); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestSchedulerFiresAndStops(t *testing.T) {
	runner := &fakeRunner{calls: make(chan generate.Scope, 1)}
	s, err := New(runner, generate.ScopeEnumerate, "05:00", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fire := make(chan time.Time)
	s.after = func(time.Duration) <-chan time.Time { return fire }

	s.Start(context.Background())
	fire <- time.Now()

	select {
	case scope := <-runner.calls:
		if scope != generate.ScopeEnumerate {
			t.Errorf("scope = %q, want enumerate", scope)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not run")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSchedulerWaitsOnInjectedClock(t *testing.T) {
	s, err := New(&fakeRunner{}, generate.ScopeDiscover, "05:00", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// 2024-03-12 04:00 JST, an hour before the run.
	s.now = func() time.Time { return time.Date(2024, 3, 11, 19, 0, 0, 0, time.UTC) }
	waits := make(chan time.Duration, 1)
	s.after = func(d time.Duration) <-chan time.Time {
		select {
		case waits <- d:
		default:
		}
		return make(chan time.Time)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case d := <-waits:
		if d != time.Hour {
			t.Errorf("wait = %v, want 1h", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never waited")
	}
}

func TestRunOnceSurvivesRunnerError(t *testing.T) {
	runner := &fakeRunner{calls: make(chan generate.Scope, 1), err: errors.New("store down")}
	s, err := New(runner, generate.ScopeDiscover, "05:00", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.RunOnce(context.Background())
	if len(runner.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(runner.calls))
	}
}
