package simengine

import (
	"errors"
	"fmt"

	"github.com/fleetsignals/platoonctl/core"
)

var (
	errVehicleUnknown = errors.New("simengine: vehicle not found")
	errVehicleExists  = errors.New("simengine: vehicle already exists")
	errRouteUnknown   = errors.New("simengine: route not found")
)

type vehicle struct {
	id       string
	route    []string
	idx      int     // index of the edge currently occupied
	offset   float64 // distance travelled along the current edge
	speed    float64
	maxSpeed float64

	// crossing is set for the single step during which the vehicle
	// traverses a junction; RoadID reports the junction-internal edge.
	crossing string
}

// Engine is an in-process core.Engine over a static Network. It is not
// safe for concurrent use; the step coordinator serialises access.
type Engine struct {
	net *Network

	vehicles map[string]*vehicle
	order    []string
	pending  []*vehicle

	highlights map[string]core.RGBA
	steps      int

	// DefaultMaxSpeed is the ceiling vehicles enter the engine with.
	DefaultMaxSpeed float64
}

// New builds an engine over the given network.
func New(net *Network) *Engine {
	return &Engine{
		net:             net,
		vehicles:        make(map[string]*vehicle),
		highlights:      make(map[string]core.RGBA),
		DefaultMaxSpeed: 50,
	}
}

// Step departs pending vehicles, then advances every live vehicle by
// its effective speed. A vehicle running off the end of its route
// leaves the simulation.
func (e *Engine) Step() error {
	e.steps++

	for _, v := range e.pending {
		e.vehicles[v.id] = v
		e.order = append(e.order, v.id)
	}
	e.pending = nil

	for _, id := range append([]string(nil), e.order...) {
		v := e.vehicles[id]
		e.advance(v)
	}
	return nil
}

func (e *Engine) advance(v *vehicle) {
	v.crossing = ""
	dist := v.speed
	if dist > v.maxSpeed {
		dist = v.maxSpeed
	}
	v.offset += dist

	for {
		edge, ok := e.net.Edge(v.route[v.idx])
		if !ok || v.offset < edge.Length {
			return
		}
		if v.idx == len(v.route)-1 {
			e.remove(v.id)
			return
		}
		v.offset -= edge.Length
		v.idx++
		v.crossing = edge.To
	}
}

func (e *Engine) remove(id string) {
	delete(e.vehicles, id)
	delete(e.highlights, id)
	for i, other := range e.order {
		if other == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}

// Steps returns how many steps the engine has executed.
func (e *Engine) Steps() int {
	return e.steps
}

// VehicleIDs lists live vehicles in departure order.
func (e *Engine) VehicleIDs() ([]string, error) {
	return append([]string(nil), e.order...), nil
}

func (e *Engine) vehicle(id string) (*vehicle, error) {
	v, ok := e.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errVehicleUnknown, id)
	}
	return v, nil
}

// Speed returns the vehicle's effective speed, capped by its ceiling.
func (e *Engine) Speed(id string) (float64, error) {
	v, err := e.vehicle(id)
	if err != nil {
		return 0, err
	}
	if v.speed > v.maxSpeed {
		return v.maxSpeed, nil
	}
	return v.speed, nil
}

func (e *Engine) SetSpeed(id string, speed float64) error {
	v, err := e.vehicle(id)
	if err != nil {
		return err
	}
	v.speed = speed
	return nil
}

func (e *Engine) MaxSpeed(id string) (float64, error) {
	v, err := e.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.maxSpeed, nil
}

func (e *Engine) SetMaxSpeed(id string, speed float64) error {
	v, err := e.vehicle(id)
	if err != nil {
		return err
	}
	v.maxSpeed = speed
	return nil
}

// Position interpolates along the vehicle's current edge.
func (e *Engine) Position(id string) (core.Vec2, error) {
	v, err := e.vehicle(id)
	if err != nil {
		return core.Vec2{}, err
	}
	edge, ok := e.net.Edge(v.route[v.idx])
	if !ok {
		return core.Vec2{}, fmt.Errorf("simengine: vehicle %q on unknown edge %q", id, v.route[v.idx])
	}
	frac := v.offset / edge.Length
	if frac > 1 {
		frac = 1
	}
	return edge.Start.Add(edge.End.Sub(edge.Start).Scale(frac)), nil
}

func (e *Engine) Route(id string) ([]string, error) {
	v, err := e.vehicle(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.route...), nil
}

// RoadID reports the occupied edge, or the junction-internal id for
// the step during which the vehicle crossed a junction.
func (e *Engine) RoadID(id string) (string, error) {
	v, err := e.vehicle(id)
	if err != nil {
		return "", err
	}
	if v.crossing != "" {
		return internalID(v.crossing), nil
	}
	return v.route[v.idx], nil
}

// ChangeTarget replaces the route's future with the shortest edge path
// from the vehicle's current edge to the target edge. The travelled
// prefix is retained so the full route remains queryable.
func (e *Engine) ChangeTarget(id, edge string) error {
	v, err := e.vehicle(id)
	if err != nil {
		return err
	}
	path, err := e.net.findPath(v.route[v.idx], edge)
	if err != nil {
		return err
	}
	route := append([]string(nil), v.route[:v.idx]...)
	v.route = append(route, path...)
	v.idx = len(route)
	return nil
}

// AddVehicle schedules a vehicle on the named route. It departs on the
// next step, not immediately.
func (e *Engine) AddVehicle(id, routeID string) error {
	if _, exists := e.vehicles[id]; exists {
		return fmt.Errorf("%w: %q", errVehicleExists, id)
	}
	for _, p := range e.pending {
		if p.id == id {
			return fmt.Errorf("%w: %q", errVehicleExists, id)
		}
	}
	edges, ok := e.net.routes[routeID]
	if !ok {
		return fmt.Errorf("%w: %q", errRouteUnknown, routeID)
	}
	e.pending = append(e.pending, &vehicle{
		id:       id,
		route:    append([]string(nil), edges...),
		speed:    0,
		maxSpeed: e.DefaultMaxSpeed,
	})
	return nil
}

func (e *Engine) RouteIDs() ([]string, error) {
	return append([]string(nil), e.net.routeOrder...), nil
}

func (e *Engine) RouteEdges(routeID string) ([]string, error) {
	edges, ok := e.net.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errRouteUnknown, routeID)
	}
	return append([]string(nil), edges...), nil
}

// EdgeIDs lists every edge, including one junction-internal id per
// junction, mirroring how real engines expose internal lanes.
func (e *Engine) EdgeIDs() ([]string, error) {
	out := append([]string(nil), e.net.edgeOrder...)
	for j := range e.net.junctionPos {
		out = append(out, internalID(j))
	}
	return out, nil
}

func (e *Engine) Highlight(id string, color core.RGBA) error {
	if _, err := e.vehicle(id); err != nil {
		return err
	}
	e.highlights[id] = color
	return nil
}

func (e *Engine) ClearHighlight(id string) error {
	if _, err := e.vehicle(id); err != nil {
		return err
	}
	delete(e.highlights, id)
	return nil
}

// HighlightColor reports the active highlight for a vehicle, if any.
func (e *Engine) HighlightColor(id string) (core.RGBA, bool) {
	c, ok := e.highlights[id]
	return c, ok
}
