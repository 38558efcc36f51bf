// Package simengine is a small deterministic road engine implementing
// the core.Engine surface. It exists so the control layer can run and
// be tested without an external simulator: vehicles advance along a
// generated grid network with piecewise-linear motion, one discrete
// step at a time. It makes no attempt at traffic physics.
package simengine

import (
	"fmt"

	"github.com/fleetsignals/platoonctl/core"
)

// Edge is a directed road segment between two junctions.
type Edge struct {
	ID     string
	From   string
	To     string
	Length float64
	Start  core.Vec2
	End    core.Vec2
}

// Network is the static road topology: directed edges between
// junctions plus a set of named routes over them.
type Network struct {
	edges     map[string]*Edge
	edgeOrder []string

	// outgoing maps a junction id to the edges leaving it.
	outgoing map[string][]*Edge

	// junctionPos maps a junction id to its coordinates.
	junctionPos map[string]core.Vec2

	routes     map[string][]string
	routeOrder []string
}

// NewGridNetwork lays out size x size junctions spaced edgeLength
// apart, with edges in both directions along every row and column, and
// one left-to-right route per row plus one top-to-bottom route per
// column. Junctions are J<k> in row-major order; the edge from Ja to
// Jb is named Ja_Jb.
func NewGridNetwork(size int, edgeLength float64) (*Network, error) {
	if size < 2 {
		return nil, fmt.Errorf("grid size must be at least 2, got %d", size)
	}
	if edgeLength <= 0 {
		return nil, fmt.Errorf("edge length must be positive, got %v", edgeLength)
	}

	n := &Network{
		edges:       make(map[string]*Edge),
		outgoing:    make(map[string][]*Edge),
		junctionPos: make(map[string]core.Vec2),
		routes:      make(map[string][]string),
	}

	junction := func(row, col int) string {
		return fmt.Sprintf("J%d", row*size+col)
	}
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			n.junctionPos[junction(row, col)] = core.Vec2{
				X: float64(col) * edgeLength,
				Y: float64(row) * edgeLength,
			}
		}
	}

	addEdge := func(from, to string) {
		id := from + "_" + to
		e := &Edge{
			ID:     id,
			From:   from,
			To:     to,
			Length: edgeLength,
			Start:  n.junctionPos[from],
			End:    n.junctionPos[to],
		}
		n.edges[id] = e
		n.edgeOrder = append(n.edgeOrder, id)
		n.outgoing[from] = append(n.outgoing[from], e)
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if col+1 < size {
				addEdge(junction(row, col), junction(row, col+1))
				addEdge(junction(row, col+1), junction(row, col))
			}
			if row+1 < size {
				addEdge(junction(row, col), junction(row+1, col))
				addEdge(junction(row+1, col), junction(row, col))
			}
		}
	}

	addRoute := func(id string, edges []string) {
		n.routes[id] = edges
		n.routeOrder = append(n.routeOrder, id)
	}

	routeNum := 0
	for row := 0; row < size; row++ {
		var edges []string
		for col := 0; col+1 < size; col++ {
			edges = append(edges, junction(row, col)+"_"+junction(row, col+1))
		}
		addRoute(fmt.Sprintf("r%d", routeNum), edges)
		routeNum++
	}
	for col := 0; col < size; col++ {
		var edges []string
		for row := 0; row+1 < size; row++ {
			edges = append(edges, junction(row, col)+"_"+junction(row+1, col))
		}
		addRoute(fmt.Sprintf("r%d", routeNum), edges)
		routeNum++
	}

	return n, nil
}

// Edge returns the edge with the given id.
func (n *Network) Edge(id string) (*Edge, bool) {
	e, ok := n.edges[id]
	return e, ok
}

// internalID is the junction-internal edge id reported while a vehicle
// crosses the junction, in the engine's ":"-prefixed convention.
func internalID(junction string) string {
	return ":" + junction + "_0"
}

// findPath returns the edge sequence from fromEdge to toEdge,
// inclusive on both ends, via breadth-first search over edge
// adjacency. fromEdge == toEdge yields a single-element path.
func (n *Network) findPath(fromEdge, toEdge string) ([]string, error) {
	start, ok := n.edges[fromEdge]
	if !ok {
		return nil, fmt.Errorf("unknown edge %q", fromEdge)
	}
	if _, ok := n.edges[toEdge]; !ok {
		return nil, fmt.Errorf("unknown edge %q", toEdge)
	}
	if fromEdge == toEdge {
		return []string{fromEdge}, nil
	}

	prev := map[string]string{start.ID: ""}
	queue := []*Edge{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range n.outgoing[cur.To] {
			if _, seen := prev[next.ID]; seen {
				continue
			}
			prev[next.ID] = cur.ID
			if next.ID == toEdge {
				var path []string
				for id := toEdge; id != ""; id = prev[id] {
					path = append([]string{id}, path...)
				}
				return path, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("no path from %q to %q", fromEdge, toEdge)
}
