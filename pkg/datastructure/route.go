package datastructure

// Step. one edge traversal inside a route, together with the instruction that
// will be spoken when the step becomes current.
type Step struct {
	from        Node
	to          Node
	edge        Edge
	instruction string
	heading     float64
	distance    float64
	stepCount   int
	landmarks   []Landmark
}

func NewStep(from, to Node, edge Edge, instruction string, heading, distance float64,
	stepCount int, landmarks []Landmark) Step {
	return Step{
		from:        from,
		to:          to,
		edge:        edge,
		instruction: instruction,
		heading:     heading,
		distance:    distance,
		stepCount:   stepCount,
		landmarks:   landmarks,
	}
}

func (s Step) GetFrom() Node {
	return s.from
}

func (s Step) GetTo() Node {
	return s.to
}

func (s Step) GetEdge() Edge {
	return s.edge
}

func (s Step) GetInstruction() string {
	return s.instruction
}

func (s Step) GetHeading() float64 {
	return s.heading
}

func (s Step) GetDistance() float64 {
	return s.distance
}

func (s Step) GetStepCount() int {
	return s.stepCount
}

func (s Step) GetLandmarks() []Landmark {
	return s.landmarks
}

// Route. an ordered chain of steps from origin to destination. the steps slice
// is never mutated, progress is modeled by PopFirstStep returning a shorter
// copy, so past revisions of the route stay valid.
type Route struct {
	steps         []Step
	totalDistance float64
}

func NewRoute(steps []Step) Route {
	total := 0.0
	for _, s := range steps {
		total += s.distance
	}
	return Route{steps: steps, totalDistance: total}
}

func (r Route) GetSteps() []Step {
	return r.steps
}

func (r Route) NumSteps() int {
	return len(r.steps)
}

func (r Route) GetTotalDistance() float64 {
	return r.totalDistance
}

func (r Route) Completed() bool {
	return len(r.steps) == 0
}

func (r Route) CurrentStep() (Step, bool) {
	if len(r.steps) == 0 {
		return Step{}, false
	}
	return r.steps[0], true
}

func (r Route) NextStep() (Step, bool) {
	if len(r.steps) < 2 {
		return Step{}, false
	}
	return r.steps[1], true
}

// PopFirstStep. route with the first step removed. the receiver is untouched.
func (r Route) PopFirstStep() Route {
	if len(r.steps) == 0 {
		return r
	}
	rest := make([]Step, len(r.steps)-1)
	copy(rest, r.steps[1:])
	return NewRoute(rest)
}

// Destination. final node of the route.
func (r Route) Destination() (Node, bool) {
	if len(r.steps) == 0 {
		return Node{}, false
	}
	return r.steps[len(r.steps)-1].to, true
}
