package simengine

import "testing"

func TestNewGridNetworkLayout(t *testing.T) {
	n, err := NewGridNetwork(3, 100)
	if err != nil {
		t.Fatalf("NewGridNetwork: %v", err)
	}

	// 3x3 grid: 6 row pairs + 6 column pairs, both directions.
	if got := len(n.edges); got != 24 {
		t.Fatalf("edge count = %d, want 24", got)
	}
	// One route per row plus one per column.
	if got := len(n.routeOrder); got != 6 {
		t.Fatalf("route count = %d, want 6", got)
	}

	e, ok := n.Edge("J0_J1")
	if !ok {
		t.Fatal("edge J0_J1 missing")
	}
	if e.Length != 100 {
		t.Fatalf("edge length = %v, want 100", e.Length)
	}
	if e.Start != (n.junctionPos["J0"]) || e.End != (n.junctionPos["J1"]) {
		t.Fatalf("edge endpoints = %v..%v, want junction positions", e.Start, e.End)
	}

	// Edges exist in both directions.
	if _, ok := n.Edge("J1_J0"); !ok {
		t.Fatal("reverse edge J1_J0 missing")
	}
}

func TestNewGridNetworkRejectsBadParameters(t *testing.T) {
	if _, err := NewGridNetwork(1, 100); err == nil {
		t.Fatal("grid size 1 accepted")
	}
	if _, err := NewGridNetwork(3, 0); err == nil {
		t.Fatal("zero edge length accepted")
	}
}

func TestFindPath(t *testing.T) {
	n, err := NewGridNetwork(3, 100)
	if err != nil {
		t.Fatalf("NewGridNetwork: %v", err)
	}

	path, err := n.findPath("J0_J1", "J0_J1")
	if err != nil {
		t.Fatalf("findPath same edge: %v", err)
	}
	if len(path) != 1 || path[0] != "J0_J1" {
		t.Fatalf("path = %v, want [J0_J1]", path)
	}

	path, err = n.findPath("J0_J1", "J4_J5")
	if err != nil {
		t.Fatalf("findPath: %v", err)
	}
	if path[0] != "J0_J1" || path[len(path)-1] != "J4_J5" {
		t.Fatalf("path = %v, want J0_J1..J4_J5", path)
	}
	// Consecutive edges must connect.
	for i := 0; i+1 < len(path); i++ {
		a, _ := n.Edge(path[i])
		b, _ := n.Edge(path[i+1])
		if a.To != b.From {
			t.Fatalf("path discontinuity between %s and %s", path[i], path[i+1])
		}
	}

	if _, err := n.findPath("J0_J1", "nope"); err == nil {
		t.Fatal("unknown target edge accepted")
	}
}
