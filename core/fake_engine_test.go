package core

import "fmt"

// fakeEngine is an in-memory Engine for tests. Vehicles are placed
// directly with place(); AddVehicle schedules a pending vehicle that
// becomes live after pendingDelay steps, mimicking the real engine's
// deferred departure.
type fakeEngine struct {
	steps int

	routeOrder []string
	routes     map[string][]string
	edges      []string

	vehicles   map[string]*fakeVehicle
	order      []string
	pending    map[string]int
	highlights map[string]RGBA

	// pendingDelay is the number of steps a scheduled vehicle waits
	// before going live.
	pendingDelay int

	// stepErr, when set, is returned by the next Step call.
	stepErr error

	// onStep, when set, observes the engine just before each step
	// advances.
	onStep func()
}

type fakeVehicle struct {
	speed    float64
	maxSpeed float64
	pos      Vec2
	route    []string
	road     string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		routeOrder:   []string{"r0"},
		routes:       map[string][]string{"r0": {"E1", "E2", "E3"}},
		edges:        []string{"E1", "E2", "E3", ":J1_0"},
		vehicles:     make(map[string]*fakeVehicle),
		pending:      make(map[string]int),
		highlights:   make(map[string]RGBA),
		pendingDelay: 1,
	}
}

// place makes a vehicle live immediately, bypassing the pending queue.
func (f *fakeEngine) place(id string, pos Vec2, route []string, road string) *fakeVehicle {
	v := &fakeVehicle{speed: 10, maxSpeed: 30, pos: pos, route: route, road: road}
	f.vehicles[id] = v
	f.order = append(f.order, id)
	return v
}

func (f *fakeEngine) vehicle(id string) (*fakeVehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	return v, nil
}

func (f *fakeEngine) Step() error {
	if f.stepErr != nil {
		err := f.stepErr
		f.stepErr = nil
		return err
	}
	if f.onStep != nil {
		f.onStep()
	}
	f.steps++
	for id, wait := range f.pending {
		if wait <= 1 {
			delete(f.pending, id)
			route := f.routes[f.routeOrder[0]]
			f.place(id, Vec2{}, route, route[0])
			f.vehicles[id].speed = 0
		} else {
			f.pending[id] = wait - 1
		}
	}
	return nil
}

func (f *fakeEngine) VehicleIDs() ([]string, error) {
	out := make([]string, 0, len(f.order))
	for _, id := range f.order {
		if _, ok := f.vehicles[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeEngine) Speed(id string) (float64, error) {
	v, err := f.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.speed, nil
}

func (f *fakeEngine) SetSpeed(id string, speed float64) error {
	v, err := f.vehicle(id)
	if err != nil {
		return err
	}
	v.speed = speed
	return nil
}

func (f *fakeEngine) MaxSpeed(id string) (float64, error) {
	v, err := f.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.maxSpeed, nil
}

func (f *fakeEngine) SetMaxSpeed(id string, speed float64) error {
	v, err := f.vehicle(id)
	if err != nil {
		return err
	}
	v.maxSpeed = speed
	return nil
}

func (f *fakeEngine) Position(id string) (Vec2, error) {
	v, err := f.vehicle(id)
	if err != nil {
		return Vec2{}, err
	}
	return v.pos, nil
}

func (f *fakeEngine) Route(id string) ([]string, error) {
	v, err := f.vehicle(id)
	if err != nil {
		return nil, err
	}
	return v.route, nil
}

func (f *fakeEngine) RoadID(id string) (string, error) {
	v, err := f.vehicle(id)
	if err != nil {
		return "", err
	}
	return v.road, nil
}

func (f *fakeEngine) ChangeTarget(id, edge string) error {
	v, err := f.vehicle(id)
	if err != nil {
		return err
	}
	v.route = append(v.route, edge)
	return nil
}

func (f *fakeEngine) AddVehicle(id, routeID string) error {
	if _, ok := f.vehicles[id]; ok {
		return fmt.Errorf("vehicle %q already live", id)
	}
	if _, ok := f.routes[routeID]; !ok {
		return fmt.Errorf("%w: %q", ErrRouteNotFound, routeID)
	}
	f.pending[id] = f.pendingDelay
	return nil
}

func (f *fakeEngine) RouteIDs() ([]string, error) {
	return f.routeOrder, nil
}

func (f *fakeEngine) RouteEdges(routeID string) ([]string, error) {
	edges, ok := f.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRouteNotFound, routeID)
	}
	return edges, nil
}

func (f *fakeEngine) EdgeIDs() ([]string, error) {
	return f.edges, nil
}

func (f *fakeEngine) Highlight(id string, color RGBA) error {
	if _, err := f.vehicle(id); err != nil {
		return err
	}
	f.highlights[id] = color
	return nil
}

func (f *fakeEngine) ClearHighlight(id string) error {
	if _, err := f.vehicle(id); err != nil {
		return err
	}
	delete(f.highlights, id)
	return nil
}
