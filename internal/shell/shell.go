// Package shell is the interactive command processor. It is the single
// command actor of the control layer: commands execute strictly one
// after another, each inside an exclusive window acquired from the
// step coordinator, so no command ever observes a half-finished engine
// step and no step ever observes a half-applied command.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fleetsignals/platoonctl/core"
	"github.com/fleetsignals/platoonctl/internal/logging"
	"github.com/fleetsignals/platoonctl/internal/observability"
	"github.com/fleetsignals/platoonctl/stepctrl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	errExit = errors.New("exit requested")

	// ErrValidation marks user mistakes: malformed numbers, wrong
	// argument counts, commands issued in the wrong mode. They are
	// reported and nothing is sent to the engine.
	ErrValidation = errors.New("validation error")
)

// CommandRecorder receives command-level measurements. The
// observability collector implements it.
type CommandRecorder interface {
	RecordCommand(name, outcome string)
	RecordInjections(n int)
}

type noopRecorder struct{}

func (noopRecorder) RecordCommand(string, string) {}
func (noopRecorder) RecordInjections(int)         {}

// Options carries the collaborators and defaults a Shell needs.
type Options struct {
	Coord    *stepctrl.Coordinator
	Loop     *stepctrl.Loop
	Engine   core.Engine
	Registry *core.VehicleRegistry
	Injector *core.Injector

	// Defaults handed to new platoons.
	PlatoonRadius  float64
	FocalDirection bool

	In  io.Reader
	Out io.Writer

	// Colors enables ANSI-colored output.
	Colors bool

	Log      logging.Logger
	Recorder CommandRecorder
}

// Shell reads commands from In and executes them against the registry
// and engine. It is not safe for concurrent use; there is exactly one
// command actor by construction.
type Shell struct {
	coord *stepctrl.Coordinator
	loop  *stepctrl.Loop
	eng   core.Engine
	reg   *core.VehicleRegistry
	inj   *core.Injector

	platoonRadius  float64
	focalDirection bool

	in     io.Reader
	out    io.Writer
	colors bool

	log      logging.Logger
	recorder CommandRecorder
	tracer   trace.Tracer

	// paused: the stepper stays parked between commands, and manual
	// stepping becomes legal.
	paused bool

	// edges caches the engine's eligible edges for validation, loaded
	// once at startup like the original client did.
	edges []string

	commands map[string]command
}

// command is one entry of the dispatch table.
type command struct {
	name    string
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, args []string) error
}

// New builds a shell. It queries the engine once for the eligible edge
// list used to validate target commands.
func New(opts Options) (*Shell, error) {
	log := opts.Log
	if log == nil {
		log = logging.Noop()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = noopRecorder{}
	}

	edges, err := core.Edges(opts.Engine)
	if err != nil {
		return nil, fmt.Errorf("load edge list: %w", err)
	}

	s := &Shell{
		coord:          opts.Coord,
		loop:           opts.Loop,
		eng:            opts.Engine,
		reg:            opts.Registry,
		inj:            opts.Injector,
		platoonRadius:  opts.PlatoonRadius,
		focalDirection: opts.FocalDirection,
		in:             opts.In,
		out:            opts.Out,
		colors:         opts.Colors,
		log:            log,
		recorder:       rec,
		tracer:         observability.Tracer("shell"),
		edges:          edges,
	}
	s.commands = s.commandTable()
	return s, nil
}

// Run reads and executes commands until exit or EOF. An exit request
// signals the coordinator so the background stepper stops too.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for {
		if ctx.Err() != nil {
			s.coord.Exit()
			return ctx.Err()
		}

		fmt.Fprint(s.out, "platoonctl> ")
		if !scanner.Scan() {
			s.coord.Exit()
			return scanner.Err()
		}

		if err := s.execute(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errExit) {
				s.coord.Exit()
				return nil
			}
			// All command errors were already reported to the user;
			// nothing recoverable reaches this point.
			return err
		}
	}
}

// execute runs one command line inside an exclusive window. Command
// errors are printed and swallowed: per the error policy they never
// stop the shell, let alone the stepper.
func (s *Shell) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := s.commands[name]
	if !ok {
		s.printError(fmt.Sprintf("unknown command %q, try 'help'", name))
		return nil
	}

	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "shell.command",
		trace.WithAttributes(attribute.String("command", name)))
	defer span.End()

	log.Debug(ctx, "executing command",
		logging.String("command", name), logging.Any("args", args))

	if len(args) < cmd.minArgs {
		s.printError(fmt.Sprintf("not enough arguments: expected at least %d, got %d (usage: %s)",
			cmd.minArgs, len(args), cmd.usage))
		s.recorder.RecordCommand(name, "error")
		return nil
	}

	s.coord.AcquireExclusive()
	err := cmd.run(ctx, args)
	s.coord.ReleaseExclusive(s.paused)

	if errors.Is(err, errExit) {
		s.recorder.RecordCommand(name, "ok")
		return errExit
	}
	if err != nil {
		s.printError(err.Error())
		log.Warn(ctx, "command failed",
			logging.String("command", name), logging.String("error", err.Error()))
		s.recorder.RecordCommand(name, "error")
		return nil
	}
	s.recorder.RecordCommand(name, "ok")
	return nil
}

func (s *Shell) printNotification(msg string) {
	if s.colors {
		msg = boldBlue(msg)
	}
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) printError(msg string) {
	msg = "ERROR: " + msg
	if s.colors {
		msg = boldRed(msg)
	}
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) printWarning(msg string) {
	msg = "WARNING: " + msg
	if s.colors {
		msg = bold(msg)
	}
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

// vehiclesFromArgs resolves vehicle ids to registry vehicles. With no
// ids given, every registered vehicle is returned.
func (s *Shell) vehiclesFromArgs(ids []string) ([]*core.Vehicle, error) {
	if len(ids) == 0 {
		return s.reg.Vehicles(), nil
	}
	out := make([]*core.Vehicle, 0, len(ids))
	for _, id := range ids {
		v, err := s.reg.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Shell) validEdge(edge string) bool {
	for _, e := range s.edges {
		if e == edge {
			return true
		}
	}
	return false
}

// commandNames returns the dispatch table's names sorted, for help.
func (s *Shell) commandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
