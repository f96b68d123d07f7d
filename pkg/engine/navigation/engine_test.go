package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/deadreckoning"
	"github.com/rizkia-p/wayfindr/pkg/localizer"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/rizkia-p/wayfindr/pkg/planner"
	"github.com/rizkia-p/wayfindr/pkg/vlm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	path datastructure.WaypointPath
	err  error
}

func (s stubResolver) ResolvePath(_ context.Context, _ datastructure.Route) (datastructure.WaypointPath, error) {
	return s.path, s.err
}

type stubSnapper struct {
	node  datastructure.Node
	found bool
}

func (s stubSnapper) Nearest(x, y float64) (datastructure.Node, bool) {
	return s.node, s.found
}

type stubEmbedder struct {
	vectors map[string]datastructure.Vector
}

func (s *stubEmbedder) Encode(_ context.Context, image []byte) (datastructure.Vector, error) {
	vec, ok := s.vectors[string(image)]
	if !ok {
		return nil, errors.New("unknown test image")
	}
	return vec, nil
}

func (s *stubEmbedder) EncodeNavigation(ctx context.Context, image []byte, _ bool) (datastructure.Vector, error) {
	return s.Encode(ctx, image)
}

func (s *stubEmbedder) DetectPersons(_ context.Context, _ []byte) (int, []float64, error) {
	return 0, nil, nil
}

type stubComparer struct{}

func (stubComparer) Compare(_ context.Context, _, _ []byte) (vlm.Comparison, error) {
	return vlm.Comparison{Match: false, Confidence: 0}, nil
}

func noCamera(_ context.Context) ([]byte, error) {
	return nil, errors.New("no camera in this test")
}

var (
	embEntrance = datastructure.Vector{1, 0, 0}
	embLobby    = datastructure.Vector{0, 1, 0}
	embCafe     = datastructure.Vector{0, 0, 1}
)

// entrance --10m north-- lobby --15m east-- cafe
func testPlanner(t *testing.T) *planner.RoutePlanner {
	t.Helper()
	nodes := []datastructure.Node{
		datastructure.NewNode("entrance", "Main Entrance", "", r2.Point{X: 0, Y: 0}, 0, nil),
		datastructure.NewNode("lobby", "Lobby", "", r2.Point{X: 0, Y: 10}, 0, nil),
		datastructure.NewNode("cafe", "Cafe", "", r2.Point{X: 15, Y: 10}, 0, nil),
	}
	edges := []datastructure.Edge{
		datastructure.NewEdge("e1", "entrance", "lobby").WithDistance(10).WithAvgHeading(0),
		datastructure.NewEdge("e2", "lobby", "cafe").WithDistance(15).WithAvgHeading(90),
	}
	rp := planner.NewRoutePlanner(zap.NewNop())
	rp.Initialize(nodes, edges)
	return rp
}

func testPath() datastructure.WaypointPath {
	now := time.Now()
	return datastructure.NewWaypointPath([]datastructure.Waypoint{
		datastructure.NewWaypoint("w0", embEntrance, 0, 0, pkg.STRAIGHT_ON, false, "", 0, now, 0),
		datastructure.NewWaypoint("w1", embLobby, 0, 90, pkg.RIGHT_TURN, true, "reception desk", 10, now, 1),
		datastructure.NewWaypoint("w2", embCafe, 90, 0, pkg.STRAIGHT_ON, false, "", 15, now, 2),
	})
}

func testLocalizerFor(embedder *stubEmbedder, refs []mapstore.Reference) *localizer.Localizer {
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", refs)
	return localizer.New(zap.NewNop(), embedder, stubComparer{}, store, "org", localizer.DefaultConfig())
}

// engine mid-navigation on the test route, loop not running; handlers are
// exercised synchronously.
func navigatingEngine(t *testing.T) *Engine {
	t.Helper()

	rp := testPlanner(t)
	route, err := rp.FindRoute("entrance", "cafe")
	require.NoError(t, err)

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, nil, est, stubResolver{path: testPath()}, nil, noCamera, DefaultConfig())

	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	e.route = route
	e.path = testPath()
	e.currentSeq = 0
	e.state = Navigating
	est.StartTracking(datastructure.NewPosition(r2.Point{X: 0, Y: 0}, 0, clock, 1.0))
	return e
}

func drainGuidance(e *Engine) []Instruction {
	out := make([]Instruction, 0)
	for {
		select {
		case in := <-e.guidance:
			out = append(out, in)
		default:
			return out
		}
	}
}

func kinds(ins []Instruction) []InstructionKind {
	ks := make([]InstructionKind, 0, len(ins))
	for _, in := range ins {
		ks = append(ks, in.Kind)
	}
	return ks
}

func TestProcessFrameAdvancesOnMatch(t *testing.T) {
	e := navigatingEngine(t)

	e.processFrame(embEntrance, 0.88)

	assert.Equal(t, Navigating, e.state)
	assert.Equal(t, 1, e.currentSeq, "sequence pointer moves to the next recorded waypoint")
	assert.Equal(t, 1, e.passed)

	ins := drainGuidance(e)
	assert.Contains(t, kinds(ins), KindWaypointReached)
}

func TestProcessFrameOffTrackNeedsConsecutiveMisses(t *testing.T) {
	e := navigatingEngine(t)
	miss := embCafe // similarity 0 against the seq-0 target

	e.processFrame(miss, 0.88)
	e.processFrame(miss, 0.88)
	assert.Equal(t, Navigating, e.state, "two misses are not enough")
	assert.NotContains(t, kinds(drainGuidance(e)), KindOffTrack)

	e.processFrame(miss, 0.88)
	assert.Equal(t, OffTrack, e.state)

	ins := drainGuidance(e)
	offTrack := 0
	for _, in := range ins {
		if in.Kind == KindOffTrack {
			offTrack++
		}
	}
	assert.Equal(t, 1, offTrack, "the off-track alert fires exactly once")

	// once off track the per-frame branch stops consuming frames
	e.processFrame(miss, 0.88)
	assert.Empty(t, drainGuidance(e))
}

func TestProcessFrameMiddleBandResetsMissCounter(t *testing.T) {
	e := navigatingEngine(t)
	miss := embCafe
	partial := datastructure.Vector{1, 1, 0} // similarity ~0.707 against seq-0 target

	e.processFrame(miss, 0.88)
	e.processFrame(miss, 0.88)
	e.processFrame(partial, 0.88)
	e.processFrame(miss, 0.88)
	e.processFrame(miss, 0.88)

	assert.Equal(t, Navigating, e.state,
		"a recognizable frame in between resets the consecutive miss counter")
}

func TestProcessFrameDecisionPointPopsStep(t *testing.T) {
	e := navigatingEngine(t)
	e.currentSeq = 1 // the right-turn decision point at the lobby

	e.processFrame(embLobby, 0.88)

	assert.Equal(t, 2, e.currentSeq)
	require.Equal(t, 1, e.route.NumSteps(), "reaching a decision point consumes the route step")
	step, _ := e.route.CurrentStep()
	assert.Equal(t, "lobby", step.GetFrom().GetId())

	ins := drainGuidance(e)
	ks := kinds(ins)
	assert.Contains(t, ks, KindWaypointReached)
	assert.Contains(t, ks, KindForward, "the next step instruction plays right after the turn point")
}

func TestProcessFrameArrival(t *testing.T) {
	e := navigatingEngine(t)
	e.currentSeq = 2
	e.passed = 2

	e.processFrame(embCafe, 0.88)

	assert.Equal(t, DestinationReached, e.state)
	ins := drainGuidance(e)
	require.NotEmpty(t, ins)
	last := ins[len(ins)-1]
	assert.Equal(t, KindArrived, last.Kind)
	assert.Equal(t, "You have arrived at Cafe", last.Text)
}

func TestProcessFrameProgressUsesSeqNotIndex(t *testing.T) {
	e := navigatingEngine(t)
	// prune the middle waypoint; seq numbering keeps its hole
	now := time.Now()
	e.path = datastructure.NewWaypointPath([]datastructure.Waypoint{
		datastructure.NewWaypoint("w0", embEntrance, 0, 0, pkg.STRAIGHT_ON, false, "", 0, now, 0),
		datastructure.NewWaypoint("w5", embCafe, 90, 0, pkg.STRAIGHT_ON, false, "", 25, now, 5),
	})

	e.processFrame(embEntrance, 0.88)
	assert.Equal(t, 5, e.currentSeq, "progress follows sequence numbers, not slice positions")
}

func TestConsecutiveMatchesWalkTheFullPath(t *testing.T) {
	e := navigatingEngine(t)

	for _, frame := range []datastructure.Vector{embEntrance, embLobby, embCafe} {
		e.processFrame(frame, 0.88)
	}

	assert.Equal(t, DestinationReached, e.State())
	assert.Equal(t, 3, e.passed)

	reached, offTrack, arrived := 0, 0, 0
	for _, in := range drainGuidance(e) {
		switch in.Kind {
		case KindWaypointReached:
			reached++
		case KindOffTrack:
			offTrack++
		case KindArrived:
			arrived++
		}
	}
	assert.Equal(t, 2, reached, "two intermediate waypoints, the last one announces arrival instead")
	assert.Equal(t, 1, arrived)
	assert.Zero(t, offTrack, "a clean walk never raises the off-track alert")
}

func TestStateSnapshotsWhileLoopRuns(t *testing.T) {
	rp := testPlanner(t)
	route, err := rp.FindRoute("entrance", "cafe")
	require.NoError(t, err)

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, nil, est, stubResolver{path: testPath()}, nil, noCamera, DefaultConfig())

	require.NoError(t, e.StartNavigation(context.Background(), route, testPath()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = e.State()
			_ = e.CurrentRoute()
			_ = e.CurrentPath()
		}
	}()

	// aligned headings drive the loop through InitialOrientation into
	// Navigating while the snapshots above keep reading
	for i := 0; i < 32; i++ {
		e.HeadingUpdates() <- 0.2
	}
	<-done

	e.Stop()
	assert.Equal(t, Idle, e.State())
}

func TestTickReconfirmsDespiteBrokenSequencePointer(t *testing.T) {
	e := navigatingEngine(t)
	e.state = Reconfirming
	e.currentSeq = 99 // no such waypoint

	e.onTick(context.Background())

	select {
	case res := <-e.frameCh:
		assert.Equal(t, captureReconfirm, res.mode)
		assert.Error(t, res.err, "the camera stub fails, but the round was scheduled")
	case <-time.After(time.Second):
		t.Fatal("no reconfirmation round was scheduled")
	}
}

func TestOrientationAlignsAndBeginsNavigating(t *testing.T) {
	e := navigatingEngine(t)
	e.state = InitialOrientation

	e.onHeading(120) // target heading 0, diff -120
	assert.Equal(t, InitialOrientation, e.state)
	ins := drainGuidance(e)
	require.NotEmpty(t, ins)
	assert.Equal(t, KindOrientation, ins[0].Kind)
	assert.Equal(t, "Turn around more to the left", ins[0].Text)

	e.onHeading(0.5)
	assert.Equal(t, Navigating, e.state)
	ins = drainGuidance(e)
	require.NotEmpty(t, ins)
	assert.Equal(t, KindForward, ins[0].Kind, "the first step instruction plays once aligned")
}

func TestApplyRecoveryLostAfterMaxAttempts(t *testing.T) {
	e := navigatingEngine(t)
	e.state = Reconfirming

	miss := frameResult{mode: captureReconfirm, matched: false}
	e.applyRecovery(context.Background(), miss)
	e.applyRecovery(context.Background(), miss)
	assert.Equal(t, Reconfirming, e.state)

	e.applyRecovery(context.Background(), miss)
	assert.Equal(t, Lost, e.state)

	ks := kinds(drainGuidance(e))
	assert.Contains(t, ks, KindLost)
}

func TestApplyRecoveryReplansFromConfirmedNode(t *testing.T) {
	e := navigatingEngine(t)
	e.state = Reconfirming
	e.passed = 1
	e.currentSeq = 1

	res := frameResult{
		mode:    captureReconfirm,
		matched: true,
		match:   datastructure.NewLocationMatch("lobby", "Lobby", 0.93, 0.9, "hq"),
	}
	e.applyRecovery(context.Background(), res)

	assert.Equal(t, Navigating, e.state)
	assert.Equal(t, 1, e.route.NumSteps(), "replanned from the lobby, one step remains")
	assert.Equal(t, 0, e.passed, "progress restarts on the new route")
	assert.Equal(t, 0, e.currentSeq)

	ins := drainGuidance(e)
	require.NotEmpty(t, ins)
	assert.Contains(t, ins[len(ins)-1].Text, "New route from Lobby")
}

func TestApplyRecoveryConfirmedAtStepOriginContinues(t *testing.T) {
	e := navigatingEngine(t)
	e.state = Reconfirming
	e.recoveryAttempts = 2

	res := frameResult{
		mode:    captureReconfirm,
		matched: true,
		match:   datastructure.NewLocationMatch("entrance", "Main Entrance", 0.95, 0.92, "hq"),
	}
	e.applyRecovery(context.Background(), res)

	assert.Equal(t, Navigating, e.state)
	assert.Equal(t, 0, e.recoveryAttempts, "a successful confirmation clears the attempt counter")
	assert.Equal(t, 2, e.route.NumSteps(), "still at the step origin, no replan")
}

func TestSayDeduplicatesWithinCooldown(t *testing.T) {
	e := navigatingEngine(t)
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	in := Instruction{Text: "Continue straight ahead", Kind: KindForward}
	e.say(in)
	e.say(in)
	assert.Len(t, drainGuidance(e), 1, "identical instruction suppressed inside the cooldown")

	clock = clock.Add(e.cfg.InstructionCooldown + time.Second)
	e.say(in)
	assert.Len(t, drainGuidance(e), 1, "the cooldown expiring lets it repeat")

	e.say(Instruction{Text: "Continue ahead, then turn right", Kind: KindForward})
	assert.Len(t, drainGuidance(e), 1, "a different instruction is never suppressed")
}

func TestStartNavigationAlreadyAtDestination(t *testing.T) {
	rp := testPlanner(t)
	route, err := rp.FindRoute("cafe", "cafe")
	require.NoError(t, err)

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, nil, est, stubResolver{}, nil, noCamera, DefaultConfig())

	err = e.StartNavigation(context.Background(), route, datastructure.WaypointPath{})
	require.NoError(t, err)

	assert.Equal(t, DestinationReached, e.State())
	ins := drainGuidance(e)
	require.Len(t, ins, 1)
	assert.Equal(t, "You are already at your destination", ins[0].Text)
}

func TestStartNavigationEntersOrientationAndStops(t *testing.T) {
	rp := testPlanner(t)
	route, err := rp.FindRoute("entrance", "cafe")
	require.NoError(t, err)

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, nil, est, stubResolver{path: testPath()}, nil, noCamera, DefaultConfig())

	err = e.StartNavigation(context.Background(), route, testPath())
	require.NoError(t, err)
	assert.Equal(t, InitialOrientation, e.State())
	assert.True(t, est.IsTracking())

	e.Stop()
	assert.Equal(t, Idle, e.State())
}

func TestStartNavigationEmptyPath(t *testing.T) {
	rp := testPlanner(t)
	route, err := rp.FindRoute("entrance", "cafe")
	require.NoError(t, err)

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, nil, est, stubResolver{}, nil, noCamera, DefaultConfig())

	err = e.StartNavigation(context.Background(), route, datastructure.WaypointPath{})
	assert.Error(t, err, "a route with steps but no recorded waypoints cannot be navigated")
}

func TestStartLocatingFlow(t *testing.T) {
	rp := testPlanner(t)
	embedder := &stubEmbedder{vectors: map[string]datastructure.Vector{
		"scan": {1, 0, 0},
	}}
	loc := testLocalizerFor(embedder, []mapstore.Reference{
		{Id: "entrance", Name: "Main Entrance", Embedding: embEntrance, MapId: "hq"},
		{Id: "cafe", Name: "Cafe", Embedding: embCafe, MapId: "hq"},
	})

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, loc, est, stubResolver{path: testPath()}, nil, noCamera, DefaultConfig())

	match, err := e.StartLocating(context.Background(), [][]byte{[]byte("scan")})
	require.NoError(t, err)
	assert.Equal(t, "entrance", match.GetId())
	assert.Equal(t, SelectingDestination, e.State())

	route, err := e.ChooseDestination(context.Background(), "cafe")
	require.NoError(t, err)
	assert.Equal(t, 2, route.NumSteps())
	assert.Equal(t, Planning, e.State())
}

func TestStartLocatingNoMatchStaysLocating(t *testing.T) {
	rp := testPlanner(t)
	embedder := &stubEmbedder{vectors: map[string]datastructure.Vector{
		"scan": {1, 0, 0},
	}}
	// references exist but nothing resembles the scan
	loc := testLocalizerFor(embedder, []mapstore.Reference{
		{Id: "cafe", Name: "Cafe", Embedding: embCafe, MapId: "hq"},
	})

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, loc, est, stubResolver{}, nil, noCamera, DefaultConfig())

	_, err := e.StartLocating(context.Background(), [][]byte{[]byte("scan")})
	assert.Error(t, err)
	assert.Equal(t, Locating, e.State(), "the session waits for another scan")

	ins := drainGuidance(e)
	require.NotEmpty(t, ins)
	assert.Equal(t, KindInfo, ins[0].Kind)
}

func TestChooseDestinationUnreachable(t *testing.T) {
	nodes := []datastructure.Node{
		datastructure.NewNode("a", "A", "", r2.Point{X: 0, Y: 0}, 0, nil),
		datastructure.NewNode("b", "B", "", r2.Point{X: 50, Y: 50}, 0, nil),
	}
	rp := planner.NewRoutePlanner(zap.NewNop())
	rp.Initialize(nodes, nil)

	embedder := &stubEmbedder{vectors: map[string]datastructure.Vector{
		"scan": {1, 0, 0},
	}}
	loc := testLocalizerFor(embedder, []mapstore.Reference{
		{Id: "a", Name: "A", Embedding: datastructure.Vector{1, 0, 0}},
	})

	est := deadreckoning.NewEstimator(zap.NewNop(), deadreckoning.DefaultConfig())
	e := NewEngine(zap.NewNop(), rp, loc, est, stubResolver{}, nil, noCamera, DefaultConfig())

	_, err := e.StartLocating(context.Background(), [][]byte{[]byte("scan")})
	require.NoError(t, err)

	_, err = e.ChooseDestination(context.Background(), "b")
	assert.Error(t, err)
	assert.Equal(t, SelectingDestination, e.State(), "no route returns to destination selection")

	ins := drainGuidance(e)
	require.NotEmpty(t, ins)
	assert.Equal(t, KindInfo, ins[0].Kind)
}
