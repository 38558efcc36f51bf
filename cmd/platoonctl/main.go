// Command platoonctl runs an in-process traffic engine with a
// background stepping loop and an interactive shell for fleet and
// platoon control.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fleetsignals/platoonctl/core"
	"github.com/fleetsignals/platoonctl/internal/config"
	"github.com/fleetsignals/platoonctl/internal/logging"
	"github.com/fleetsignals/platoonctl/internal/observability"
	"github.com/fleetsignals/platoonctl/internal/shell"
	"github.com/fleetsignals/platoonctl/internal/simengine"
	"github.com/fleetsignals/platoonctl/stepctrl"
)

type rootOptions struct {
	configPath string
	verbose    bool
	noColor    bool

	vehicles     int
	speed        float64
	maxSpeed     float64
	radius       float64
	stepInterval time.Duration
	metricsAddr  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "platoonctl",
		Short: "interactive platoon control over a stepped traffic engine",
		Long: "platoonctl runs a grid traffic engine stepped in the background\n" +
			"and an interactive shell for injecting vehicles, forming platoons,\n" +
			"and pausing or single-stepping the simulation.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "platoonctl.yaml", "path to YAML config (optional)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored shell output")
	cmd.Flags().IntVar(&opts.vehicles, "vehicles", 0, "vehicles injected at startup")
	cmd.Flags().Float64Var(&opts.speed, "speed", 0, "target speed for injected vehicles")
	cmd.Flags().Float64Var(&opts.maxSpeed, "max-speed", 0, "max speed for injected vehicles")
	cmd.Flags().Float64Var(&opts.radius, "radius", 0, "platoon clustering radius")
	cmd.Flags().DurationVar(&opts.stepInterval, "step-interval", 0, "pause between background steps")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")

	return cmd
}

// loadConfig resolves the effective configuration: defaults, then
// flags, then the YAML file, which wins for keys it sets.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg := config.Default()

	if cmd.Flags().Changed("vehicles") {
		cfg.Vehicle.Count = opts.vehicles
	}
	if cmd.Flags().Changed("speed") {
		cfg.Vehicle.Speed = opts.speed
	}
	if cmd.Flags().Changed("max-speed") {
		cfg.Vehicle.MaxSpeed = opts.maxSpeed
	}
	if cmd.Flags().Changed("radius") {
		cfg.Platoon.Radius = opts.radius
	}
	if cmd.Flags().Changed("step-interval") {
		cfg.Engine.StepInterval = opts.stepInterval
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	optional := !cmd.Flags().Changed("config")
	if err := config.Load(opts.configPath, &cfg, optional); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	collector, err := observability.NewSimCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		defer srv.Close()
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	net, err := simengine.NewGridNetwork(cfg.Engine.GridSize, cfg.Engine.EdgeLength)
	if err != nil {
		return fmt.Errorf("build road network: %w", err)
	}
	eng := simengine.New(net)

	reg := core.NewVehicleRegistry(log)
	rng := rand.New(rand.NewSource(cfg.Engine.Seed))
	maint := core.NewMaintenance(eng, reg, rng, log)

	inj := core.NewInjector(eng, reg, log)
	inj.DefaultSpeed = cfg.Vehicle.Speed
	inj.DefaultMaxSpeed = cfg.Vehicle.MaxSpeed

	coord := stepctrl.NewCoordinator()
	loop := &stepctrl.Loop{
		Coord:    coord,
		Step:     func(context.Context) error { return eng.Step() },
		Maintain: maint.RunPass,
		Report: func(m stepctrl.MetricsRecorder) {
			m.SetVehicleCount(reg.Len())
			if p := reg.Platoon(); p != nil {
				m.SetPlatoonSize(p.Size())
			} else {
				m.SetPlatoonSize(0)
			}
		},
		Interval: cfg.Engine.StepInterval,
		Log:      log,
		Metrics:  collector,
	}
	go loop.Run(ctx)

	if cfg.Vehicle.Count > 0 {
		coord.AcquireExclusive()
		added, err := inj.Inject(ctx, cfg.Vehicle.Count)
		coord.ReleaseExclusive(false)
		if len(added) > 0 {
			collector.RecordInjections(len(added))
		}
		if err != nil {
			return fmt.Errorf("startup injection: %w", err)
		}
		log.Info(ctx, "startup fleet injected", logging.Int("count", len(added)))
	}

	sh, err := shell.New(shell.Options{
		Coord:          coord,
		Loop:           loop,
		Engine:         eng,
		Registry:       reg,
		Injector:       inj,
		PlatoonRadius:  cfg.Platoon.Radius,
		FocalDirection: cfg.Platoon.FocalDirection,
		In:             cmd.InOrStdin(),
		Out:            cmd.OutOrStdout(),
		Colors:         !opts.noColor,
		Log:            log,
		Recorder:       collector,
	})
	if err != nil {
		return err
	}

	err = sh.Run(ctx)
	coord.Exit()
	return err
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
