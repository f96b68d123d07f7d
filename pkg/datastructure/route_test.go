package datastructure

import (
	"testing"

	"github.com/golang/geo/r2"
)

func testNode(id string, x, y float64) Node {
	return NewNode(id, "node "+id, "", r2.Point{X: x, Y: y}, 0, nil)
}

func testRoute() Route {
	a := testNode("a", 0, 0)
	b := testNode("b", 0, 10)
	c := testNode("c", 15, 10)

	return NewRoute([]Step{
		NewStep(a, b, NewEdge("e1", "a", "b"), "head north", 0, 10, 14, nil),
		NewStep(b, c, NewEdge("e2", "b", "c"), "head east", 90, 15, 21, nil),
	})
}

func TestRouteTotalDistance(t *testing.T) {
	route := testRoute()
	if route.GetTotalDistance() != 25 {
		t.Errorf("total distance = %v, want 25", route.GetTotalDistance())
	}
	if route.NumSteps() != 2 {
		t.Errorf("num steps = %d, want 2", route.NumSteps())
	}
}

func TestRoutePopFirstStepDoesNotMutateReceiver(t *testing.T) {
	route := testRoute()
	popped := route.PopFirstStep()

	if route.NumSteps() != 2 {
		t.Errorf("original route mutated, num steps = %d", route.NumSteps())
	}
	if popped.NumSteps() != 1 {
		t.Fatalf("popped route num steps = %d, want 1", popped.NumSteps())
	}
	if popped.GetTotalDistance() != 15 {
		t.Errorf("popped total distance = %v, want 15", popped.GetTotalDistance())
	}

	step, ok := popped.CurrentStep()
	if !ok || step.GetFrom().GetId() != "b" {
		t.Errorf("popped current step should start at b, got %+v", step)
	}

	empty := popped.PopFirstStep()
	if !empty.Completed() {
		t.Error("route with all steps popped should be completed")
	}
	if again := empty.PopFirstStep(); !again.Completed() {
		t.Error("popping a completed route should stay completed")
	}
}

func TestRouteDestination(t *testing.T) {
	route := testRoute()
	dest, ok := route.Destination()
	if !ok || dest.GetId() != "c" {
		t.Errorf("destination = %v, want c", dest.GetId())
	}

	if _, ok := NewRoute(nil).Destination(); ok {
		t.Error("empty route should have no destination")
	}
}

func TestRouteNextStep(t *testing.T) {
	route := testRoute()
	next, ok := route.NextStep()
	if !ok || next.GetFrom().GetId() != "b" {
		t.Errorf("next step should start at b")
	}

	if _, ok := route.PopFirstStep().NextStep(); ok {
		t.Error("single-step route has no next step")
	}
}
