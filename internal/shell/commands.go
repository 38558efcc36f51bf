package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fleetsignals/platoonctl/core"
)

func (s *Shell) commandTable() map[string]command {
	cmds := []command{
		{
			name: "help", usage: "help",
			help: "list available commands",
			run:  s.cmdHelp,
		},
		{
			name: "exit", usage: "exit",
			help: "stop the simulation and leave the shell",
			run:  func(context.Context, []string) error { return errExit },
		},
		{
			name: "pause", usage: "pause",
			help: "halt background stepping",
			run:  s.cmdPause,
		},
		{
			name: "resume", usage: "resume",
			help: "restart background stepping",
			run:  s.cmdResume,
		},
		{
			name: "step", usage: "step [n]",
			help: "advance n steps (default 1) while paused",
			run:  s.cmdStep,
		},
		{
			name: "speed", usage: "speed <value> [vehicle...]",
			help: "set target speed for the given vehicles, or all",
			minArgs: 1, run: s.cmdSpeed,
		},
		{
			name: "maxspeed", usage: "maxspeed <value> [vehicle...]",
			help: "set max speed for the given vehicles, or all",
			minArgs: 1, run: s.cmdMaxSpeed,
		},
		{
			name: "target", usage: "target <edge> <vehicle...>",
			help: "reroute vehicles toward the given edge",
			minArgs: 2, run: s.cmdTarget,
		},
		{
			name: "edges", usage: "edges",
			help: "list the network's edges",
			run:  s.cmdEdges,
		},
		{
			name: "vehicles", usage: "vehicles",
			help: "list tracked vehicles with their state",
			run:  s.cmdVehicles,
		},
		{
			name: "route", usage: "route <vehicle...>",
			help: "print the route of the given vehicles",
			minArgs: 1, run: s.cmdRoute,
		},
		{
			name: "addv", usage: "addv [n]",
			help: "inject n new vehicles (default 1)",
			run:  s.cmdAddVehicles,
		},
		{
			name: "rmv", usage: "rmv [vehicle...]",
			help: "toggle ensurance; a vehicle left unensured departs at its route end",
			run:  s.cmdToggleEnsurance,
		},
		{
			name: "setp", usage: "setp <focal>",
			help: "form a platoon around the focal vehicle",
			minArgs: 1, run: s.cmdSetPlatoon,
		},
		{
			name: "rmp", usage: "rmp",
			help: "dissolve the current platoon",
			run:  s.cmdRemovePlatoon,
		},
		{
			name: "radius", usage: "radius <value>",
			help: "set the platoon's clustering radius",
			minArgs: 1, run: s.cmdRadius,
		},
		{
			name: "speedp", usage: "speedp <value>",
			help: "set target speed for every platoon member",
			minArgs: 1, run: s.cmdPlatoonSpeed,
		},
		{
			name: "targetp", usage: "targetp <edge>",
			help: "reroute every platoon member toward the given edge",
			minArgs: 1, run: s.cmdPlatoonTarget,
		},
		{
			name: "platoon", usage: "platoon [vehicle]",
			help: "report the platoon's members, or one member's state",
			run:  s.cmdPlatoonInfo,
		},
		{
			name: "hl", usage: "hl [vehicle...]",
			help: "highlight the given vehicles, or all",
			run:  s.cmdHighlight,
		},
		{
			name: "shl", usage: "shl [vehicle...]",
			help: "clear highlight on the given vehicles, or all",
			run:  s.cmdClearHighlight,
		},
	}

	table := make(map[string]command, len(cmds))
	for _, c := range cmds {
		table[c.name] = c
	}
	return table
}

func (s *Shell) cmdHelp(context.Context, []string) error {
	for _, name := range s.commandNames() {
		c := s.commands[name]
		s.println(fmt.Sprintf("  %-28s %s", c.usage, c.help))
	}
	return nil
}

func (s *Shell) cmdPause(context.Context, []string) error {
	if s.paused {
		return fmt.Errorf("%w: already paused", ErrValidation)
	}
	s.paused = true
	s.printNotification("simulation paused")
	return nil
}

func (s *Shell) cmdResume(context.Context, []string) error {
	if !s.paused {
		return fmt.Errorf("%w: not paused", ErrValidation)
	}
	s.paused = false
	s.printNotification("simulation resumed")
	return nil
}

// cmdStep advances the engine manually. Each manual step runs the same
// step-plus-maintenance pass the background loop runs, so platoon and
// bookkeeping state stay identical either way.
func (s *Shell) cmdStep(ctx context.Context, args []string) error {
	if !s.paused {
		return fmt.Errorf("%w: step requires the simulation to be paused", ErrValidation)
	}
	n := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("%w: step count must be a positive integer, got %q", ErrValidation, args[0])
		}
		n = parsed
	}
	for i := 0; i < n; i++ {
		if err := s.loop.StepOnce(ctx); err != nil {
			return fmt.Errorf("manual step %d of %d: %w", i+1, n, err)
		}
	}
	s.printNotification(fmt.Sprintf("advanced %d step(s)", n))
	return nil
}

func (s *Shell) cmdSpeed(_ context.Context, args []string) error {
	speed, err := parseFloat(args[0], "speed")
	if err != nil {
		return err
	}
	vehicles, err := s.vehiclesFromArgs(args[1:])
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := v.SetSpeed(speed); err != nil {
			return err
		}
	}
	s.printNotification(fmt.Sprintf("speed %g applied to %d vehicle(s)", speed, len(vehicles)))
	return nil
}

func (s *Shell) cmdMaxSpeed(_ context.Context, args []string) error {
	max, err := parseFloat(args[0], "max speed")
	if err != nil {
		return err
	}
	vehicles, err := s.vehiclesFromArgs(args[1:])
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := v.SetMaxSpeed(max); err != nil {
			return err
		}
	}
	s.printNotification(fmt.Sprintf("max speed %g applied to %d vehicle(s)", max, len(vehicles)))
	return nil
}

func (s *Shell) cmdTarget(_ context.Context, args []string) error {
	edge := args[0]
	if !s.validEdge(edge) {
		return fmt.Errorf("%w: unknown edge %q", ErrValidation, edge)
	}
	vehicles, err := s.vehiclesFromArgs(args[1:])
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := v.SetTarget(edge); err != nil {
			return err
		}
	}
	s.printNotification(fmt.Sprintf("target %s applied to %d vehicle(s)", edge, len(vehicles)))
	return nil
}

func (s *Shell) cmdEdges(context.Context, []string) error {
	for _, e := range s.edges {
		s.println(e)
	}
	return nil
}

func (s *Shell) cmdVehicles(ctx context.Context, _ []string) error {
	vehicles := s.reg.Vehicles()
	if len(vehicles) == 0 {
		s.printWarning("no vehicles tracked")
		return nil
	}
	for _, v := range vehicles {
		s.println(v.Describe())
	}
	return nil
}

func (s *Shell) cmdRoute(_ context.Context, args []string) error {
	for _, id := range args {
		v, err := s.reg.Get(id)
		if err != nil {
			return err
		}
		route, err := v.Route()
		if err != nil {
			return err
		}
		s.println(fmt.Sprintf("%s: %s", id, strings.Join(route, " ")))
	}
	return nil
}

// cmdAddVehicles injects vehicles through the freeze-and-fast-forward
// path. Injection mutates engine time, so it is refused while paused.
func (s *Shell) cmdAddVehicles(ctx context.Context, args []string) error {
	if s.paused {
		return fmt.Errorf("%w: cannot add vehicles while paused", ErrValidation)
	}
	n := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("%w: vehicle count must be a positive integer, got %q", ErrValidation, args[0])
		}
		n = parsed
	}
	added, err := s.inj.Inject(ctx, n)
	if len(added) > 0 {
		s.recorder.RecordInjections(len(added))
	}
	if err != nil {
		if len(added) > 0 {
			s.printWarning(fmt.Sprintf("only %d of %d vehicle(s) injected", len(added), n))
		}
		return err
	}
	s.printNotification(fmt.Sprintf("injected %d vehicle(s)", len(added)))
	return nil
}

// cmdToggleEnsurance is how vehicles leave the simulation: the engine
// offers no removal call, so turning ensurance off lets a vehicle run to
// its route end, where the engine drops it and the next maintenance pass
// prunes it from the registry.
func (s *Shell) cmdToggleEnsurance(_ context.Context, args []string) error {
	vehicles, err := s.vehiclesFromArgs(args)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		v.ToggleEnsurance()
		state := "off"
		if v.Ensured {
			state = "on"
		}
		s.printNotification(fmt.Sprintf("ensurance for %s: %s", v.ID, state))
	}
	return nil
}

func (s *Shell) cmdSetPlatoon(ctx context.Context, args []string) error {
	focal, err := s.reg.Get(args[0])
	if err != nil {
		return err
	}
	p, err := core.NewPlatoon(focal, s.focalDirection)
	if err != nil {
		return err
	}
	p.Radius = s.platoonRadius
	s.reg.SetPlatoon(p)
	res, err := p.Propagate(s.reg, s.log)
	if err != nil {
		return err
	}
	s.printNotification(fmt.Sprintf("platoon formed around %s with %d member(s)", focal.ID, res.Size))
	return nil
}

func (s *Shell) cmdRemovePlatoon(context.Context, []string) error {
	if s.reg.Platoon() == nil {
		return core.ErrNoPlatoon
	}
	s.reg.SetPlatoon(nil)
	s.printNotification("platoon dissolved")
	return nil
}

func (s *Shell) cmdRadius(_ context.Context, args []string) error {
	radius, err := parseFloat(args[0], "radius")
	if err != nil {
		return err
	}
	if radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %g", ErrValidation, radius)
	}
	s.platoonRadius = radius
	if p := s.reg.Platoon(); p != nil {
		p.Radius = radius
	}
	s.printNotification(fmt.Sprintf("platoon radius set to %g", radius))
	return nil
}

func (s *Shell) cmdPlatoonSpeed(_ context.Context, args []string) error {
	p := s.reg.Platoon()
	if p == nil {
		return core.ErrNoPlatoon
	}
	speed, err := parseFloat(args[0], "speed")
	if err != nil {
		return err
	}
	if err := p.SetSpeed(speed); err != nil {
		return err
	}
	s.printNotification(fmt.Sprintf("platoon speed set to %g", speed))
	return nil
}

func (s *Shell) cmdPlatoonTarget(_ context.Context, args []string) error {
	p := s.reg.Platoon()
	if p == nil {
		return core.ErrNoPlatoon
	}
	edge := args[0]
	if !s.validEdge(edge) {
		return fmt.Errorf("%w: unknown edge %q", ErrValidation, edge)
	}
	if err := p.SetTarget(edge); err != nil {
		return err
	}
	s.printNotification(fmt.Sprintf("platoon rerouted toward %s", edge))
	return nil
}

func (s *Shell) cmdPlatoonInfo(_ context.Context, args []string) error {
	p := s.reg.Platoon()
	if p == nil {
		return core.ErrNoPlatoon
	}
	if len(args) > 0 {
		v, err := p.Vehicle(args[0])
		if err != nil {
			return err
		}
		s.println(v.Describe())
		return nil
	}
	s.println(fmt.Sprintf("focal: %s", p.Focal.Vehicle.ID))
	s.println(fmt.Sprintf("radius: %g", p.Radius))
	s.println(fmt.Sprintf("size: %d", p.Size()))
	for _, v := range p.Members() {
		s.println("  " + v.ID)
	}
	return nil
}

func (s *Shell) cmdHighlight(_ context.Context, args []string) error {
	vehicles, err := s.vehiclesFromArgs(args)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := v.Highlight(core.HighlightManual); err != nil {
			return err
		}
	}
	s.printNotification(fmt.Sprintf("highlighted %d vehicle(s)", len(vehicles)))
	return nil
}

func (s *Shell) cmdClearHighlight(_ context.Context, args []string) error {
	vehicles, err := s.vehiclesFromArgs(args)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := v.ClearHighlight(); err != nil {
			return err
		}
	}
	s.printNotification(fmt.Sprintf("cleared highlight on %d vehicle(s)", len(vehicles)))
	return nil
}

func parseFloat(raw, what string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrValidation, what, raw)
	}
	return v, nil
}
