package core

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// Maintenance is the post-step upkeep that runs once after every engine
// step, background or manual: garbage collection of vehicles the engine
// no longer reports, current-edge refresh, ensurance rerouting, and
// platoon propagation.
//
// It assumes exclusive access is already held by whoever granted the
// step; it takes no locks of its own.
type Maintenance struct {
	eng Engine
	reg *VehicleRegistry
	log logging.Logger
	rng *rand.Rand
}

// NewMaintenance wires a maintenance pass over the engine and registry.
// The rng drives ensurance reroute choices; pass a seeded source for
// reproducible runs.
func NewMaintenance(eng Engine, reg *VehicleRegistry, rng *rand.Rand, log logging.Logger) *Maintenance {
	if log == nil {
		log = logging.Noop()
	}
	return &Maintenance{eng: eng, reg: reg, log: log, rng: rng}
}

// RunPass performs one full maintenance pass in the fixed order:
// garbage collection, edge refresh, ensurance, propagation. Per-vehicle
// engine errors are logged and skipped so one misbehaving vehicle
// cannot starve the rest of the pass; only a failure that invalidates
// the whole pass (listing live vehicles, propagation) is returned.
func (m *Maintenance) RunPass(ctx context.Context) error {
	if err := m.collectDeparted(ctx); err != nil {
		return err
	}

	for _, v := range m.reg.Vehicles() {
		if changed, err := v.RefreshCurrentEdge(); err != nil {
			m.log.Warn(ctx, "refresh current edge failed",
				logging.String("vehicle", v.ID), logging.String("error", err.Error()))
		} else if changed {
			m.log.Debug(ctx, "current edge updated",
				logging.String("vehicle", v.ID), logging.String("edge", v.CurrentEdge))
		}

		if v.Ensured {
			if err := m.Ensure(ctx, v, ""); err != nil {
				m.log.Warn(ctx, "ensurance reroute failed",
					logging.String("vehicle", v.ID), logging.String("error", err.Error()))
			}
		}
	}

	if p := m.reg.Platoon(); p != nil {
		if _, err := p.Propagate(m.reg, m.log); err != nil {
			return fmt.Errorf("platoon propagation: %w", err)
		}
	}
	return nil
}

// collectDeparted removes from the registry every vehicle the engine no
// longer lists among its live vehicles.
func (m *Maintenance) collectDeparted(ctx context.Context) error {
	ids, err := m.eng.VehicleIDs()
	if err != nil {
		return fmt.Errorf("list live vehicles: %w", err)
	}
	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}
	for _, v := range m.reg.Vehicles() {
		if _, ok := live[v.ID]; !ok {
			m.log.Info(ctx, "vehicle left simulation", logging.String("vehicle", v.ID))
			m.reg.Remove(v.ID)
		}
	}
	return nil
}

// Ensure reroutes the vehicle if it has reached its target edge. The
// new target is targetEdge when given, otherwise a random eligible
// edge excluding the vehicle's current one.
func (m *Maintenance) Ensure(ctx context.Context, v *Vehicle, targetEdge string) error {
	if !v.ReachedTarget() {
		return nil
	}
	target := targetEdge
	if target == "" {
		var err error
		target, err = RandomEdge(m.eng, m.rng, v.CurrentEdge)
		if err != nil {
			return err
		}
	}
	if err := v.SetTarget(target); err != nil {
		return err
	}
	m.log.Debug(ctx, "vehicle rerouted on arrival",
		logging.String("vehicle", v.ID), logging.String("target", target))
	return nil
}
