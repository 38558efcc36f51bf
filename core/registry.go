package core

import (
	"fmt"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// VehicleRegistry is the authoritative set of tracked vehicles plus the
// active platoon, if any. Vehicles are kept in insertion order; the
// propagation candidate pool inherits that order.
//
// The registry carries no locking of its own. Mutation is arbitrated by
// the step coordinator: whichever actor holds the exclusive window (or
// the stepper during its granted turn) is the single writer.
type VehicleRegistry struct {
	vehicles []*Vehicle
	byID     map[string]*Vehicle
	platoon  *Platoon

	// nextID feeds monotonically assigned vehicle ids (v0, v1, ...).
	nextID int

	log logging.Logger
}

// NewVehicleRegistry creates an empty registry.
func NewVehicleRegistry(log logging.Logger) *VehicleRegistry {
	if log == nil {
		log = logging.Noop()
	}
	return &VehicleRegistry{
		byID: make(map[string]*Vehicle),
		log:  log,
	}
}

// NextVehicleID reserves and returns the next vehicle id.
func (r *VehicleRegistry) NextVehicleID() string {
	id := fmt.Sprintf("v%d", r.nextID)
	r.nextID++
	return id
}

// Add registers a vehicle. Ids must be unique.
func (r *VehicleRegistry) Add(v *Vehicle) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("nil or unidentified vehicle")
	}
	if _, exists := r.byID[v.ID]; exists {
		return fmt.Errorf("vehicle %q already registered", v.ID)
	}
	r.vehicles = append(r.vehicles, v)
	r.byID[v.ID] = v
	return nil
}

// Remove drops a vehicle from the registry. Removing an unknown id is
// a no-op so garbage collection can be retried safely.
func (r *VehicleRegistry) Remove(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, v := range r.vehicles {
		if v.ID == id {
			r.vehicles = append(r.vehicles[:i], r.vehicles[i+1:]...)
			break
		}
	}
}

// Get returns the vehicle with the given id.
func (r *VehicleRegistry) Get(id string) (*Vehicle, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	return v, nil
}

// Vehicles returns the tracked vehicles in insertion order. The slice
// is a copy; the vehicles are not.
func (r *VehicleRegistry) Vehicles() []*Vehicle {
	out := make([]*Vehicle, len(r.vehicles))
	copy(out, r.vehicles)
	return out
}

// Len returns the number of tracked vehicles.
func (r *VehicleRegistry) Len() int {
	return len(r.vehicles)
}

// Platoon returns the active platoon, or nil when none is set.
func (r *VehicleRegistry) Platoon() *Platoon {
	return r.platoon
}

// SetPlatoon installs a new platoon, tearing down the previous one
// first: every member of the old tree gets its pre-join maximum speed
// restored and its highlight cleared. Passing nil clears the platoon.
func (r *VehicleRegistry) SetPlatoon(p *Platoon) {
	if r.platoon != nil {
		r.platoon.Teardown(r.log)
	}
	r.platoon = p
}
