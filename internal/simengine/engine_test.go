package simengine

import (
	"strings"
	"testing"

	"github.com/fleetsignals/platoonctl/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	net, err := NewGridNetwork(3, 100)
	if err != nil {
		t.Fatalf("NewGridNetwork: %v", err)
	}
	return New(net)
}

func TestAddVehicleDepartsOnNextStep(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	ids, _ := e.VehicleIDs()
	if len(ids) != 0 {
		t.Fatalf("vehicle live before any step: %v", ids)
	}

	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	ids, _ = e.VehicleIDs()
	if len(ids) != 1 || ids[0] != "v0" {
		t.Fatalf("vehicles after step = %v, want [v0]", ids)
	}
}

func TestAddVehicleRejectsDuplicatesAndUnknownRoutes(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.AddVehicle("v0", "r0"); err == nil {
		t.Fatal("duplicate pending id accepted")
	}
	if err := e.AddVehicle("v1", "r99"); err == nil {
		t.Fatal("unknown route accepted")
	}
}

func TestVehicleAdvancesAndLeavesAtRouteEnd(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := e.SetSpeed("v0", 60); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}

	// Route r0 is two 100-length edges; at 50 effective speed (capped
	// by the default ceiling) the vehicle leaves after four steps.
	for i := 0; i < 10; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		ids, _ := e.VehicleIDs()
		if len(ids) == 0 {
			if e.Steps() < 4 {
				t.Fatalf("vehicle left too early, after %d steps", e.Steps())
			}
			return
		}
	}
	t.Fatal("vehicle never left the simulation")
}

func TestSpeedIsCappedByMaxSpeed(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if err := e.SetMaxSpeed("v0", 20); err != nil {
		t.Fatalf("SetMaxSpeed: %v", err)
	}
	if err := e.SetSpeed("v0", 80); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	got, err := e.Speed("v0")
	if err != nil {
		t.Fatalf("Speed: %v", err)
	}
	if got != 20 {
		t.Fatalf("effective speed = %v, want capped 20", got)
	}
}

func TestRoadIDReportsInternalEdgeWhileCrossing(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := e.SetSpeed("v0", 50); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}

	sawInternal := false
	for i := 0; i < 4; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		ids, _ := e.VehicleIDs()
		if len(ids) == 0 {
			break
		}
		road, err := e.RoadID("v0")
		if err != nil {
			t.Fatalf("RoadID: %v", err)
		}
		if strings.HasPrefix(road, ":") {
			sawInternal = true
		}
	}
	if !sawInternal {
		t.Fatal("junction crossing never reported an internal edge id")
	}
}

func TestPositionInterpolatesAlongEdge(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := e.SetSpeed("v0", 25); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	pos, err := e.Position("v0")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	want := core.Vec2{X: 25, Y: 0}
	if pos.DistanceTo(want) > 1e-9 {
		t.Fatalf("position = %v, want %v", pos, want)
	}
}

func TestChangeTargetKeepsTravelledPrefix(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// Reroute towards a column edge from the first row edge.
	if err := e.ChangeTarget("v0", "J0_J3"); err != nil {
		t.Fatalf("ChangeTarget: %v", err)
	}
	route, err := e.Route("v0")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if route[0] != "J0_J1" {
		t.Fatalf("route = %v, want to start at current edge J0_J1", route)
	}
	if route[len(route)-1] != "J0_J3" {
		t.Fatalf("route = %v, want to end at J0_J3", route)
	}
}

func TestEdgeIDsIncludeInternalOnes(t *testing.T) {
	e := newTestEngine(t)
	edges, err := e.EdgeIDs()
	if err != nil {
		t.Fatalf("EdgeIDs: %v", err)
	}
	internal := 0
	for _, id := range edges {
		if strings.HasPrefix(id, ":") {
			internal++
		}
	}
	if internal != 9 {
		t.Fatalf("internal edge count = %d, want one per junction (9)", internal)
	}
}

func TestHighlightLifecycle(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddVehicle("v0", "r0"); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	color := core.RGBA{R: 255, A: 255}
	if err := e.Highlight("v0", color); err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if got, ok := e.HighlightColor("v0"); !ok || got != color {
		t.Fatalf("highlight = %v,%v, want %v", got, ok, color)
	}
	if err := e.ClearHighlight("v0"); err != nil {
		t.Fatalf("ClearHighlight: %v", err)
	}
	if _, ok := e.HighlightColor("v0"); ok {
		t.Fatal("highlight survived ClearHighlight")
	}
}
