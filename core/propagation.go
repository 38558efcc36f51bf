package core

import (
	"context"
	"fmt"

	"github.com/fleetsignals/platoonctl/internal/logging"
)

// PropagationResult is the outcome of one propagation pass: the flat
// membership in claim order (focal vehicle first) and its size.
type PropagationResult struct {
	Members []*Vehicle
	Size    int
}

// candidatePool is the transient set of vehicles eligible to be
// claimed during a single propagation pass. It preserves registry
// insertion order and is destructively drained as vehicles are
// claimed; a vehicle removed here can never be attached twice, which
// is what makes membership exactly-once across the whole tree.
type candidatePool struct {
	vehicles []*Vehicle
}

// inRadius removes and returns every pooled vehicle within radius of
// the given position. The comparison is inclusive: a candidate exactly
// at radius is claimed.
func (p *candidatePool) inRadius(from Vec2, radius float64) ([]*Vehicle, error) {
	var claimed []*Vehicle
	remaining := p.vehicles[:0]
	for _, v := range p.vehicles {
		pos, err := v.Position()
		if err != nil {
			return nil, fmt.Errorf("position of %s: %w", v.ID, err)
		}
		if from.DistanceTo(pos) <= radius {
			claimed = append(claimed, v)
		} else {
			remaining = append(remaining, v)
		}
	}
	p.vehicles = remaining
	return claimed, nil
}

// buildCandidatePool collects every registered vehicle, except the
// excluded one, that travels the corridor: either the corridor's first
// edge is still among the vehicle's remaining edges, or the vehicle
// already passed it but is still on a sub-route that starts there
// (see hasPastSubroute). The two conditions are an inclusive OR.
func buildCandidatePool(reg *VehicleRegistry, corridor []string, exclude string) (*candidatePool, error) {
	pool := &candidatePool{}
	if len(corridor) == 0 {
		return pool, nil
	}
	for _, v := range reg.Vehicles() {
		if v.ID == exclude {
			continue
		}
		remaining, err := v.RemainingEdges()
		if err != nil {
			return nil, fmt.Errorf("remaining edges of %s: %w", v.ID, err)
		}
		if containsString(remaining, corridor[0]) {
			pool.vehicles = append(pool.vehicles, v)
			continue
		}
		past, err := hasPastSubroute(corridor, v)
		if err != nil {
			return nil, err
		}
		if past {
			pool.vehicles = append(pool.vehicles, v)
		}
	}
	return pool, nil
}

// hasPastSubroute reports whether the vehicle's route contains the
// corridor's first edge and reaches the vehicle's present edge after
// it. This admits vehicles that already drove past the corridor's
// start but are still traversing it.
func hasPastSubroute(corridor []string, v *Vehicle) (bool, error) {
	route, err := v.Route()
	if err != nil {
		return false, fmt.Errorf("route of %s: %w", v.ID, err)
	}
	start := -1
	for i, e := range route {
		if e == corridor[0] {
			start = i
			break
		}
	}
	if start < 0 {
		return false, nil
	}
	for _, e := range route[start:] {
		if e == v.CurrentEdge {
			return true, nil
		}
	}
	return false, nil
}

// Propagate rebuilds the platoon tree for this pass. It computes the
// eligibility corridor, builds the candidate pool from the registry,
// and recursively claims pool vehicles within Radius of each member.
// Vehicles claimed this pass are highlighted; members of the previous
// pass that were not re-claimed are dropped (speed and highlight
// restored). The pool and counters live and die with this invocation.
func (p *Platoon) Propagate(reg *VehicleRegistry, log logging.Logger) (PropagationResult, error) {
	if log == nil {
		log = logging.Noop()
	}
	ctx := context.Background()
	focal := p.Focal.Vehicle

	corridor := p.Corridor
	if p.FocalDirection {
		var err error
		corridor, err = focal.RemainingEdges()
		if err != nil {
			return PropagationResult{}, fmt.Errorf("focal corridor: %w", err)
		}
	}

	pool, err := buildCandidatePool(reg, corridor, focal.ID)
	if err != nil {
		return PropagationResult{}, err
	}
	log.Debug(ctx, "propagation pass starting",
		logging.String("focal", focal.ID),
		logging.Float("radius", p.Radius),
		logging.Int("candidates", len(pool.vehicles)))

	if err := focal.Highlight(HighlightFocal); err != nil {
		log.Warn(ctx, "highlight focal vehicle failed",
			logging.String("vehicle", focal.ID), logging.String("error", err.Error()))
	}

	previous := p.Focal.Descendants()
	p.Focal.Children = nil

	// A member re-claimed on consecutive passes keeps the maximum
	// speed recorded when it first joined, not whatever it was mutated
	// to while a member.
	carry := make(map[string]float64, len(previous))
	for _, m := range previous {
		carry[m.Vehicle.ID] = m.originalMaxSpeed
	}

	result := PropagationResult{Members: []*Vehicle{focal}, Size: 1}
	pass := &propagationPass{
		pool:   pool,
		radius: p.Radius,
		carry:  carry,
		result: &result,
		log:    log,
	}
	if err := p.Focal.propagate(pass); err != nil {
		return PropagationResult{}, err
	}

	// Members that were in the previous tree but not re-claimed this
	// pass have left the platoon; release their scoped state.
	claimed := make(map[string]struct{}, len(result.Members))
	for _, v := range result.Members {
		claimed[v.ID] = struct{}{}
	}
	for _, m := range previous {
		if _, ok := claimed[m.Vehicle.ID]; !ok {
			m.drop(log)
		}
	}

	p.lastMembers = result.Members
	p.lastSize = result.Size
	log.Debug(ctx, "propagation pass finished", logging.Int("size", result.Size))
	return result, nil
}

// propagationPass bundles the state scoped to a single propagation
// invocation: the drained pool, the claim radius, carried-over join
// speeds, and the accumulated result.
type propagationPass struct {
	pool   *candidatePool
	radius float64
	carry  map[string]float64
	result *PropagationResult
	log    logging.Logger
}

// propagate claims every unclaimed pool vehicle within radius of this
// member as a child, then recurses into the new children with the same
// radius. A member with no unclaimed candidates in radius attaches no
// children and terminates its branch.
func (m *PlatoonMember) propagate(pass *propagationPass) error {
	pos, err := m.Vehicle.Position()
	if err != nil {
		return fmt.Errorf("position of %s: %w", m.Vehicle.ID, err)
	}

	near, err := pass.pool.inRadius(pos, pass.radius)
	if err != nil {
		return err
	}

	for _, v := range near {
		if v.ID == m.Vehicle.ID {
			continue
		}
		child, err := NewPlatoonMember(v)
		if err != nil {
			return err
		}
		if joinMax, ok := pass.carry[v.ID]; ok {
			child.originalMaxSpeed = joinMax
		}
		if err := v.Highlight(HighlightMember); err != nil {
			pass.log.Warn(context.Background(), "highlight claimed member failed",
				logging.String("vehicle", v.ID), logging.String("error", err.Error()))
		}
		m.Children = append(m.Children, child)
		pass.result.Members = append(pass.result.Members, v)
		pass.result.Size++
	}

	for _, child := range m.Children {
		if err := child.propagate(pass); err != nil {
			return err
		}
	}
	return nil
}
