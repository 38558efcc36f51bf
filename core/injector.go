package core

import (
	"context"
	"fmt"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// CreepSpeed is imposed on the existing fleet while a new vehicle is
// fast-forwarded into the engine. It is non-zero: a full stop trips the
// engine's own stall and collision handling.
const CreepSpeed = 1.0

// Injector materialises new vehicles in the engine. It must only be
// invoked from inside an already-held exclusive window: the injection
// loop drives engine steps directly, bypassing the step coordinator,
// which is safe exactly because the background stepper is parked.
type Injector struct {
	eng Engine
	reg *VehicleRegistry
	log logging.Logger

	// Defaults applied to every vehicle once it is live.
	DefaultSpeed    float64
	DefaultMaxSpeed float64
}

// NewInjector builds an injector bound to the engine and registry.
func NewInjector(eng Engine, reg *VehicleRegistry, log logging.Logger) *Injector {
	if log == nil {
		log = logging.Noop()
	}
	return &Injector{eng: eng, reg: reg, log: log}
}

// fleetFreeze snapshots the fleet's commanded speeds so they can be
// restored on every exit path of an injection, including engine errors
// raised mid-wait.
type fleetFreeze struct {
	vehicles []*Vehicle
	speeds   map[string]float64
}

// freezeFleet records each vehicle's target speed and commands the
// creep speed. If imposing the creep speed fails partway, the vehicles
// already slowed are restored before the error is returned.
func freezeFleet(vehicles []*Vehicle) (*fleetFreeze, error) {
	f := &fleetFreeze{vehicles: vehicles, speeds: make(map[string]float64, len(vehicles))}
	for _, v := range vehicles {
		f.speeds[v.ID] = v.TargetSpeed
		if err := v.SetSpeed(CreepSpeed); err != nil {
			f.release(logging.Noop())
			return nil, fmt.Errorf("freeze %s: %w", v.ID, err)
		}
	}
	return f, nil
}

// release restores every snapshotted speed. Restore failures are
// logged, not returned: the remaining vehicles must still be restored.
func (f *fleetFreeze) release(log logging.Logger) {
	for _, v := range f.vehicles {
		original, ok := f.speeds[v.ID]
		if !ok {
			continue
		}
		if err := v.SetSpeed(original); err != nil {
			log.Warn(context.Background(), "restore speed after injection failed",
				logging.String("vehicle", v.ID), logging.String("error", err.Error()))
		}
	}
}

// Inject creates count new vehicles, one at a time. For each: the
// fleet is frozen at the creep speed, the vehicle is added on its
// route, the engine is stepped directly until the vehicle is live, the
// fleet is restored, and the vehicle is registered with the configured
// default maximum speed and speed applied.
//
// If the engine has no route to place a vehicle on, injection fails
// before any engine mutation occurs.
func (inj *Injector) Inject(ctx context.Context, count int) ([]*Vehicle, error) {
	injected := make([]*Vehicle, 0, count)
	for i := 0; i < count; i++ {
		v, err := inj.injectOne(ctx)
		if err != nil {
			return injected, err
		}
		injected = append(injected, v)
	}
	return injected, nil
}

func (inj *Injector) injectOne(ctx context.Context) (*Vehicle, error) {
	id := inj.reg.NextVehicleID()
	v, err := NewVehicle(inj.eng, id, "")
	if err != nil {
		return nil, err
	}

	if err := inj.addAndAwait(ctx, v); err != nil {
		return nil, err
	}

	if err := v.SetMaxSpeed(inj.DefaultMaxSpeed); err != nil {
		return nil, fmt.Errorf("apply default max speed to %s: %w", v.ID, err)
	}
	if err := v.SetSpeed(inj.DefaultSpeed); err != nil {
		return nil, fmt.Errorf("apply default speed to %s: %w", v.ID, err)
	}
	if err := inj.reg.Add(v); err != nil {
		return nil, err
	}

	inj.log.Info(ctx, "vehicle injected",
		logging.String("vehicle", v.ID), logging.String("route", v.InitialRoute))
	return v, nil
}

// addAndAwait freezes the fleet, schedules the vehicle, and drives the
// engine forward until the vehicle is live. The freeze is released on
// every exit path.
func (inj *Injector) addAndAwait(ctx context.Context, v *Vehicle) error {
	frozen, err := freezeFleet(inj.reg.Vehicles())
	if err != nil {
		return err
	}
	defer frozen.release(inj.log)

	if err := inj.eng.AddVehicle(v.ID, v.InitialRoute); err != nil {
		return fmt.Errorf("add vehicle %s: %w", v.ID, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		live, err := VehicleLive(inj.eng, v.ID)
		if err != nil {
			return err
		}
		if live {
			return nil
		}
		if err := inj.eng.Step(); err != nil {
			return fmt.Errorf("step while awaiting %s: %w", v.ID, err)
		}
	}
}
