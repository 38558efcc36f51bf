package core

import (
	"context"
	"fmt"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// PlatoonMember wraps one vehicle in the platoon tree, together with
// the child members discovered within radius during the most recent
// propagation pass and the maximum speed the vehicle had when it
// joined. The remembered speed is restored when the member is dropped.
type PlatoonMember struct {
	Vehicle  *Vehicle
	Children []*PlatoonMember

	originalMaxSpeed float64
}

// NewPlatoonMember records the vehicle's current maximum speed and
// wraps it as a tree node.
func NewPlatoonMember(v *Vehicle) (*PlatoonMember, error) {
	max, err := v.MaxSpeed()
	if err != nil {
		return nil, fmt.Errorf("max speed of %s: %w", v.ID, err)
	}
	return &PlatoonMember{Vehicle: v, originalMaxSpeed: max}, nil
}

// Descendants returns every member reachable below this node, in
// claim order (children first, each followed by its own subtree).
func (m *PlatoonMember) Descendants() []*PlatoonMember {
	var out []*PlatoonMember
	for _, c := range m.Children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

// drop releases the member's scoped state: the highlight is cleared,
// the pre-join maximum speed is restored, and a vehicle left crawling
// below speed 1 is nudged back so it does not stall in the engine.
// Engine errors here are logged and swallowed; teardown must visit
// every member regardless.
func (m *PlatoonMember) drop(log logging.Logger) {
	ctx := context.Background()
	v := m.Vehicle
	if err := v.ClearHighlight(); err != nil {
		log.Warn(ctx, "clear highlight on drop failed",
			logging.String("vehicle", v.ID), logging.String("error", err.Error()))
	}
	if err := v.eng.SetMaxSpeed(v.ID, m.originalMaxSpeed); err != nil {
		log.Warn(ctx, "restore max speed on drop failed",
			logging.String("vehicle", v.ID), logging.String("error", err.Error()))
	}
	if v.TargetSpeed < 1 {
		if err := v.SetSpeed(1); err != nil {
			log.Warn(ctx, "nudge speed on drop failed",
				logging.String("vehicle", v.ID), logging.String("error", err.Error()))
		}
	}
}

// Platoon is a tree of nearby co-directional vehicles rooted at a
// focal vehicle. The tree is rebuilt from scratch on every propagation
// pass; the flat membership and size are only meaningful immediately
// after a pass. At most one platoon is active at a time.
type Platoon struct {
	Focal  *PlatoonMember
	Radius float64

	// FocalDirection selects the eligibility corridor: the focal
	// vehicle's remaining route when true, Corridor when false.
	FocalDirection bool
	Corridor       []string

	// Result of the most recent propagation pass.
	lastMembers []*Vehicle
	lastSize    int
}

// DefaultRadius is the claim distance threshold a platoon starts with.
const DefaultRadius = 15

// NewPlatoon roots a platoon at the given focal vehicle.
func NewPlatoon(focal *Vehicle, focalDirection bool) (*Platoon, error) {
	fp, err := NewPlatoonMember(focal)
	if err != nil {
		return nil, err
	}
	return &Platoon{
		Focal:          fp,
		Radius:         DefaultRadius,
		FocalDirection: focalDirection,
		lastMembers:    []*Vehicle{focal},
		lastSize:       1,
	}, nil
}

// Members returns the vehicles of the platoon in claim order, focal
// vehicle first, as of the most recent propagation pass.
func (p *Platoon) Members() []*Vehicle {
	out := make([]*Vehicle, len(p.lastMembers))
	copy(out, p.lastMembers)
	return out
}

// Size returns the membership count as of the most recent pass.
func (p *Platoon) Size() int {
	return p.lastSize
}

// Vehicle returns the platoon member vehicle with the given id.
func (p *Platoon) Vehicle(id string) (*Vehicle, error) {
	for _, v := range p.lastMembers {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q not in platoon", ErrVehicleNotFound, id)
}

// SetSpeed commands every platoon vehicle to the given speed.
func (p *Platoon) SetSpeed(speed float64) error {
	for _, v := range p.lastMembers {
		if err := v.SetSpeed(speed); err != nil {
			return err
		}
	}
	return nil
}

// SetTarget points every platoon vehicle at the given target edge.
func (p *Platoon) SetTarget(edge string) error {
	for _, v := range p.lastMembers {
		if err := v.SetTarget(edge); err != nil {
			return err
		}
	}
	return nil
}

// Teardown walks the current tree and drops every member, focal
// vehicle included, then forgets the tree. Invoked whenever the
// platoon is replaced or cleared.
func (p *Platoon) Teardown(log logging.Logger) {
	if log == nil {
		log = logging.Noop()
	}
	p.Focal.drop(log)
	for _, m := range p.Focal.Descendants() {
		m.drop(log)
	}
	p.Focal.Children = nil
	p.lastMembers = []*Vehicle{p.Focal.Vehicle}
	p.lastSize = 1
}
