package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the control layer and
// provides a ready-to-serve /metrics handler. It implements the
// stepctrl.MetricsRecorder and shell.CommandRecorder interfaces.
type SimCollector struct {
	gatherer prometheus.Gatherer

	StepsTotal      prometheus.Counter
	StepDuration    prometheus.Histogram
	VehiclesTracked prometheus.Gauge
	PlatoonSize     prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec
	InjectionsTotal prometheus.Counter
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total number of engine steps driven by the control layer, background and manual.",
	}), "sim_steps_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Duration of one engine step plus its maintenance pass.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	durations, err = registerHistogram(reg, durations, "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	vehicles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_vehicles_tracked",
		Help: "Current number of vehicles in the registry.",
	}), "sim_vehicles_tracked")
	if err != nil {
		return nil, err
	}

	platoonSize, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_platoon_size",
		Help: "Membership count of the active platoon after the latest propagation pass; 0 when no platoon is set.",
	}), "sim_platoon_size")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shell_commands_total",
		Help: "Total number of executed shell commands, labeled by command name and outcome.",
	}, []string{"command", "outcome"})
	commands, err = registerCounterVec(reg, commands, "shell_commands_total")
	if err != nil {
		return nil, err
	}

	injections, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_vehicle_injections_total",
		Help: "Total number of vehicles injected into the engine.",
	}), "sim_vehicle_injections_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:        gatherer,
		StepsTotal:      steps,
		StepDuration:    durations,
		VehiclesTracked: vehicles,
		PlatoonSize:     platoonSize,
		CommandsTotal:   commands,
		InjectionsTotal: injections,
	}, nil
}

// RecordStep counts one completed step and observes its duration.
func (c *SimCollector) RecordStep(d time.Duration) {
	if c == nil {
		return
	}
	c.StepsTotal.Inc()
	c.StepDuration.Observe(d.Seconds())
}

// SetVehicleCount publishes the registry's current size.
func (c *SimCollector) SetVehicleCount(n int) {
	if c == nil {
		return
	}
	c.VehiclesTracked.Set(float64(n))
}

// SetPlatoonSize publishes the latest propagation pass's membership count.
func (c *SimCollector) SetPlatoonSize(n int) {
	if c == nil {
		return
	}
	c.PlatoonSize.Set(float64(n))
}

// RecordCommand counts one executed shell command by name and outcome
// ("ok" or "error").
func (c *SimCollector) RecordCommand(name, outcome string) {
	if c == nil {
		return
	}
	c.CommandsTotal.WithLabelValues(name, outcome).Inc()
}

// RecordInjections counts vehicles successfully injected.
func (c *SimCollector) RecordInjections(n int) {
	if c == nil {
		return
	}
	c.InjectionsTotal.Add(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
