package core

import "errors"

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrRouteNotFound   = errors.New("route not found")
	ErrNoRoutes        = errors.New("no routes available")
	ErrSpeedAboveMax   = errors.New("speed exceeds maximum speed")
	ErrMaxBelowSpeed   = errors.New("maximum speed below current speed")
	ErrNoPlatoon       = errors.New("no platoon set")
)

// RGBA is the color applied to a transient vehicle highlight.
type RGBA struct {
	R, G, B, A uint8
}

// Highlight colors used by the control layer. Claimed platoon members are
// marked green, the focal vehicle red, and manually highlighted vehicles blue.
var (
	HighlightFocal  = RGBA{R: 255, A: 255}
	HighlightMember = RGBA{G: 255, A: 255}
	HighlightManual = RGBA{B: 255, A: 255}
)

// Engine is the narrow surface of the external turn-based traffic engine.
// One call to Step advances simulated time by exactly one discrete step;
// everything else queries or mutates per-vehicle state or topology.
//
// Implementations are not required to be safe for concurrent use: the
// step coordinator guarantees that only one actor talks to the engine
// at a time.
type Engine interface {
	// Step advances the simulation by one discrete step.
	Step() error

	// VehicleIDs lists the ids of vehicles currently live in the engine.
	VehicleIDs() ([]string, error)

	Speed(id string) (float64, error)
	SetSpeed(id string, speed float64) error
	MaxSpeed(id string) (float64, error)
	SetMaxSpeed(id string, speed float64) error

	// Position returns the vehicle's planar coordinates.
	Position(id string) (Vec2, error)

	// Route returns the ordered edge sequence the vehicle is following.
	Route(id string) ([]string, error)

	// RoadID returns the id of the edge the vehicle currently occupies.
	// Junction-internal edges are reported with a ":" prefix.
	RoadID(id string) (string, error)

	// ChangeTarget reroutes the vehicle so its route ends at the edge.
	ChangeTarget(id, edge string) error

	// AddVehicle schedules a new vehicle on the named route. The vehicle
	// becomes live on a later step, not immediately.
	AddVehicle(id, routeID string) error

	RouteIDs() ([]string, error)
	RouteEdges(routeID string) ([]string, error)

	// EdgeIDs lists every edge id, including junction-internal ones.
	EdgeIDs() ([]string, error)

	Highlight(id string, color RGBA) error
	ClearHighlight(id string) error
}

// VehicleLive reports whether the engine currently lists the vehicle
// among its live vehicles.
func VehicleLive(eng Engine, id string) (bool, error) {
	ids, err := eng.VehicleIDs()
	if err != nil {
		return false, err
	}
	for _, live := range ids {
		if live == id {
			return true, nil
		}
	}
	return false, nil
}
