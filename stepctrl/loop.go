package stepctrl

import (
	"context"
	"time"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// MetricsRecorder receives step-level measurements from the loop. The
// observability collector implements it; Noop is used when metrics are
// disabled.
type MetricsRecorder interface {
	RecordStep(d time.Duration)
	SetVehicleCount(n int)
	SetPlatoonSize(n int)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordStep(time.Duration) {}
func (NoopMetrics) SetVehicleCount(int)      {}
func (NoopMetrics) SetPlatoonSize(int)       {}

// Loop is the background stepping actor. Once per granted turn it
// advances the engine exactly one step and runs the post-step
// maintenance pass, then reports completion to the coordinator.
//
// Step and Maintain are injected so the loop stays independent of the
// engine and registry types; StepOnce runs the same pair for manual
// stepping while paused, where exclusivity is already held and the
// coordinator must not be consulted.
type Loop struct {
	Coord    *Coordinator
	Step     func(ctx context.Context) error
	Maintain func(ctx context.Context) error

	// Report publishes post-maintenance state (fleet size, platoon
	// size) into the metrics recorder. Optional.
	Report func(m MetricsRecorder)

	// Interval paces background steps. Zero means step as fast as
	// turns are granted.
	Interval time.Duration

	Log     logging.Logger
	Metrics MetricsRecorder
}

// Run executes the stepping loop until the coordinator exits or the
// context is cancelled. Engine and maintenance errors are logged and
// the loop keeps going: per the error policy only an explicit exit
// stops the stepper.
func (l *Loop) Run(ctx context.Context) {
	log := l.Log
	if log == nil {
		log = logging.Noop()
	}
	metrics := l.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	for {
		if ctx.Err() != nil || !l.Coord.BeginStep() {
			return
		}

		if err := l.StepOnce(ctx); err != nil {
			log.Warn(ctx, "background step failed", logging.String("error", err.Error()))
		}

		l.Coord.FinishStep()

		if l.Interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.Interval):
			}
		}
	}
}

// StepOnce performs one engine step followed by one full maintenance
// pass, and records the measurements. It does not touch the
// coordinator: Run calls it inside a granted turn, and the manual
// step command calls it inside a held exclusive window while paused.
// Either way the same maintenance runs, keeping registry state
// consistent no matter which path drove the step.
func (l *Loop) StepOnce(ctx context.Context) error {
	metrics := l.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	start := time.Now()
	stepErr := l.Step(ctx)

	// Maintenance runs even after a failed step: the engine may have
	// partially advanced, and the registry must converge on whatever
	// state the engine is now in.
	maintErr := l.Maintain(ctx)

	metrics.RecordStep(time.Since(start))
	if l.Report != nil {
		l.Report(metrics)
	}

	if stepErr != nil {
		return stepErr
	}
	return maintErr
}
