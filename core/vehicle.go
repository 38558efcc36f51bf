package core

import (
	"fmt"
	"strings"
)

// Vehicle is a single tracked vehicle. The engine owns its kinematics;
// this type caches the control-layer view of it: the edge it was last
// seen on, the edge it is headed for, and the last commanded speed
// (distinct from the instantaneous speed the engine reports).
//
// Vehicles are owned by a VehicleRegistry and must only be mutated by
// the actor currently holding the step coordinator's exclusive window.
type Vehicle struct {
	ID string

	// InitialRoute is the route the vehicle was created on.
	InitialRoute string

	// CurrentEdge is refreshed from the engine once per step. Junction
	// internal edges never overwrite it.
	CurrentEdge string

	// TargetEdge is the last edge of the vehicle's current route.
	TargetEdge string

	// TargetSpeed is the last speed commanded through SetSpeed.
	TargetSpeed float64

	// Ensured marks the vehicle for automatic rerouting once it reaches
	// its target edge.
	Ensured bool

	eng Engine
}

// NewVehicle builds a vehicle record bound to the given engine. When
// routeID is empty the engine's first route is used. The target edge is
// initialised to the last edge of the chosen route and the target speed
// to 1, matching the speed a vehicle enters the simulation with.
//
// No engine mutation happens here; the vehicle is not yet live.
func NewVehicle(eng Engine, id, routeID string) (*Vehicle, error) {
	routes, err := eng.RouteIDs()
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	if routeID == "" {
		if len(routes) == 0 {
			return nil, ErrNoRoutes
		}
		routeID = routes[0]
	} else if !containsString(routes, routeID) {
		return nil, fmt.Errorf("%w: %q", ErrRouteNotFound, routeID)
	}

	edges, err := eng.RouteEdges(routeID)
	if err != nil {
		return nil, fmt.Errorf("edges of route %q: %w", routeID, err)
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: route %q has no edges", ErrRouteNotFound, routeID)
	}

	return &Vehicle{
		ID:           id,
		InitialRoute: routeID,
		CurrentEdge:  edges[0],
		TargetEdge:   edges[len(edges)-1],
		TargetSpeed:  1,
		Ensured:      true,
		eng:          eng,
	}, nil
}

// Speed returns the instantaneous speed the engine reports.
func (v *Vehicle) Speed() (float64, error) {
	return v.eng.Speed(v.ID)
}

// SetSpeed commands the engine speed and records it as the target speed.
// Speeds above the vehicle's maximum are rejected before any engine call.
func (v *Vehicle) SetSpeed(speed float64) error {
	max, err := v.eng.MaxSpeed(v.ID)
	if err != nil {
		return err
	}
	if speed > max {
		return fmt.Errorf("%w: vehicle %s speed %.2f > max %.2f", ErrSpeedAboveMax, v.ID, speed, max)
	}
	if err := v.eng.SetSpeed(v.ID, speed); err != nil {
		return err
	}
	v.TargetSpeed = speed
	return nil
}

// MaxSpeed returns the vehicle's maximum speed.
func (v *Vehicle) MaxSpeed() (float64, error) {
	return v.eng.MaxSpeed(v.ID)
}

// SetMaxSpeed lowers or raises the vehicle's speed ceiling. A ceiling
// below the current speed is rejected before any engine call.
func (v *Vehicle) SetMaxSpeed(max float64) error {
	speed, err := v.Speed()
	if err != nil {
		return err
	}
	if max < speed {
		return fmt.Errorf("%w: vehicle %s max %.2f < speed %.2f", ErrMaxBelowSpeed, v.ID, max, speed)
	}
	return v.eng.SetMaxSpeed(v.ID, max)
}

// SetTarget reroutes the vehicle towards the edge. The edge is assumed
// to be a valid, non-internal edge id; callers validate it.
func (v *Vehicle) SetTarget(edge string) error {
	if err := v.eng.ChangeTarget(v.ID, edge); err != nil {
		return err
	}
	v.TargetEdge = edge
	return nil
}

// ReachedTarget reports whether the cached current edge equals the
// target edge.
func (v *Vehicle) ReachedTarget() bool {
	return v.CurrentEdge == v.TargetEdge
}

// Position returns the vehicle's planar coordinates.
func (v *Vehicle) Position() (Vec2, error) {
	return v.eng.Position(v.ID)
}

// Route returns the ordered edge sequence the vehicle is following.
func (v *Vehicle) Route() ([]string, error) {
	return v.eng.Route(v.ID)
}

// RemainingEdges returns the suffix of the route starting at the cached
// current edge. When the current edge is no longer on the route (it was
// just rerouted and not yet refreshed) the whole route is returned.
func (v *Vehicle) RemainingEdges() ([]string, error) {
	route, err := v.Route()
	if err != nil {
		return nil, err
	}
	for i, e := range route {
		if e == v.CurrentEdge {
			return route[i:], nil
		}
	}
	return route, nil
}

// RefreshCurrentEdge pulls the edge the engine reports and updates the
// cache. Junction-internal ids (":"-prefixed) are transient and ignored.
// Returns true when the cached edge changed.
func (v *Vehicle) RefreshCurrentEdge() (bool, error) {
	edge, err := v.eng.RoadID(v.ID)
	if err != nil {
		return false, err
	}
	if edge == "" || strings.HasPrefix(edge, ":") || edge == v.CurrentEdge {
		return false, nil
	}
	v.CurrentEdge = edge
	return true, nil
}

// ToggleEnsurance flips the auto-reroute-on-arrival behaviour.
func (v *Vehicle) ToggleEnsurance() {
	v.Ensured = !v.Ensured
}

// Highlight applies a transient visual marker to the vehicle.
func (v *Vehicle) Highlight(color RGBA) error {
	return v.eng.Highlight(v.ID, color)
}

// ClearHighlight removes the vehicle's visual marker.
func (v *Vehicle) ClearHighlight() error {
	return v.eng.ClearHighlight(v.ID)
}

// Describe renders the vehicle for the interactive client. The route is
// included only while ensurance is active, as that is when it changes
// underneath the user.
func (v *Vehicle) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vehicle id: %s\n", v.ID)
	fmt.Fprintf(&b, "Current edge: %s\n", v.CurrentEdge)
	fmt.Fprintf(&b, "Target edge: %s", v.TargetEdge)
	if v.Ensured {
		if route, err := v.Route(); err == nil {
			fmt.Fprintf(&b, "\nRoute: %s", strings.Join(route, " "))
		}
	}
	return b.String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
