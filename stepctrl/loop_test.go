package stepctrl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// journal records step and maintenance invocations in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func TestStepOnceRunsMaintenanceAfterStep(t *testing.T) {
	j := &journal{}
	l := &Loop{
		Coord:    NewCoordinator(),
		Step:     func(context.Context) error { j.add("step"); return nil },
		Maintain: func(context.Context) error { j.add("maintain"); return nil },
	}

	if err := l.StepOnce(context.Background()); err != nil {
		t.Fatalf("StepOnce: %v", err)
	}
	got := j.snapshot()
	if len(got) != 2 || got[0] != "step" || got[1] != "maintain" {
		t.Fatalf("order = %v, want [step maintain]", got)
	}
}

func TestStepOnceRunsMaintenanceEvenAfterFailedStep(t *testing.T) {
	j := &journal{}
	stepErr := errors.New("engine hiccup")
	l := &Loop{
		Coord:    NewCoordinator(),
		Step:     func(context.Context) error { j.add("step"); return stepErr },
		Maintain: func(context.Context) error { j.add("maintain"); return nil },
	}

	if err := l.StepOnce(context.Background()); !errors.Is(err, stepErr) {
		t.Fatalf("err = %v, want the step error", err)
	}
	got := j.snapshot()
	if len(got) != 2 || got[1] != "maintain" {
		t.Fatalf("maintenance skipped after failed step: %v", got)
	}
}

func TestManualStepsMatchBackgroundSteps(t *testing.T) {
	// Five manual steps must produce exactly five step calls and five
	// maintenance passes, interleaved step-then-maintenance, just like
	// five background turns would.
	j := &journal{}
	c := NewCoordinator()
	l := &Loop{
		Coord:    c,
		Step:     func(context.Context) error { j.add("step"); return nil },
		Maintain: func(context.Context) error { j.add("maintain"); return nil },
	}

	// Pause: acquire and keep the stepper parked.
	c.AcquireExclusive()
	for i := 0; i < 5; i++ {
		if err := l.StepOnce(context.Background()); err != nil {
			t.Fatalf("manual step %d: %v", i, err)
		}
	}
	c.ReleaseExclusive(true)

	got := j.snapshot()
	if len(got) != 10 {
		t.Fatalf("journal has %d entries, want 10: %v", len(got), got)
	}
	for i := 0; i < 10; i += 2 {
		if got[i] != "step" || got[i+1] != "maintain" {
			t.Fatalf("pass %d out of order: %v", i/2, got)
		}
	}
}

func TestRunStopsOnExit(t *testing.T) {
	c := NewCoordinator()
	steps := make(chan struct{}, 1)
	l := &Loop{
		Coord: c,
		Step: func(context.Context) error {
			// Non-blocking: the loop spins with a zero interval, and a
			// step stuck on a full channel would never park between
			// turns to observe the exit signal.
			select {
			case steps <- struct{}{}:
			default:
			}
			return nil
		},
		Maintain: func(context.Context) error { return nil },
	}

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	select {
	case <-steps:
	case <-time.After(time.Second):
		t.Fatal("loop never stepped")
	}

	c.Exit()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on exit")
	}
}

func TestRunKeepsGoingAfterErrors(t *testing.T) {
	c := NewCoordinator()
	var calls int
	errs := errors.New("transient")
	stepped := make(chan int, 100)
	l := &Loop{
		Coord: c,
		Step: func(context.Context) error {
			calls++
			select {
			case stepped <- calls:
			default:
			}
			if calls == 1 {
				return errs
			}
			return nil
		},
		Maintain: func(context.Context) error { return nil },
	}

	go l.Run(context.Background())
	defer c.Exit()

	deadline := time.After(time.Second)
	for {
		select {
		case n := <-stepped:
			if n >= 2 {
				return // survived the failing step
			}
		case <-deadline:
			t.Fatal("loop stopped after a step error")
		}
	}
}

func TestRunReportsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	l := &Loop{
		Coord:    NewCoordinator(),
		Step:     func(context.Context) error { return nil },
		Maintain: func(context.Context) error { return nil },
		Metrics:  rec,
		Report: func(m MetricsRecorder) {
			m.SetVehicleCount(7)
		},
	}

	if err := l.StepOnce(context.Background()); err != nil {
		t.Fatalf("StepOnce: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.steps != 1 {
		t.Fatalf("recorded %d steps, want 1", rec.steps)
	}
	if rec.vehicles != 7 {
		t.Fatalf("recorded vehicle count %d, want 7", rec.vehicles)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	steps    int
	vehicles int
}

func (r *fakeRecorder) RecordStep(time.Duration) {
	r.mu.Lock()
	r.steps++
	r.mu.Unlock()
}

func (r *fakeRecorder) SetVehicleCount(n int) {
	r.mu.Lock()
	r.vehicles = n
	r.mu.Unlock()
}

func (*fakeRecorder) SetPlatoonSize(int) {}
