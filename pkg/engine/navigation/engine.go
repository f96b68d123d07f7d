package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/deadreckoning"
	"github.com/rizkia-p/wayfindr/pkg/geo"
	"github.com/rizkia-p/wayfindr/pkg/localizer"
	"github.com/rizkia-p/wayfindr/pkg/planner"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

// CaptureFunc. camera frame capture on demand, supplied by the surrounding
// application.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// PathResolver. resolves the recorded waypoint path that visually tracks a
// planned route.
type PathResolver interface {
	ResolvePath(ctx context.Context, route datastructure.Route) (datastructure.WaypointPath, error)
}

// NodeSnapper. nearest graph node to a map coordinate, used when a recovery
// confirmation lands the user somewhere off the planned route.
type NodeSnapper interface {
	Nearest(x, y float64) (datastructure.Node, bool)
}

type Config struct {
	TickInterval         time.Duration
	InstructionCooldown  time.Duration
	OrientationTolerance float64
	OffTrackThreshold    float64
	OffTrackTriggerCount int
	MaxRecoveryAttempts  int
	DeviationTolerance   float64
	ApproachMargin       float64
}

func DefaultConfig() Config {
	return Config{
		TickInterval:         time.Duration(pkg.DEFAULT_TICK_INTERVAL_MS) * time.Millisecond,
		InstructionCooldown:  time.Duration(pkg.DEFAULT_INSTRUCTION_COOLDOWN_SEC * float64(time.Second)),
		OrientationTolerance: pkg.DEFAULT_ORIENTATION_TOLERANCE_DEG,
		OffTrackThreshold:    pkg.DEFAULT_OFFTRACK_THRESHOLD,
		OffTrackTriggerCount: pkg.DEFAULT_OFFTRACK_TRIGGER_COUNT,
		MaxRecoveryAttempts:  pkg.DEFAULT_MAX_RECOVERY_ATTEMPTS,
		DeviationTolerance:   pkg.DEFAULT_DEVIATION_TOLERANCE_METER,
		ApproachMargin:       0.1,
	}
}

type captureMode uint8

const (
	captureProgress captureMode = iota
	captureReconfirm
)

type frameResult struct {
	mode      captureMode
	vec       datastructure.Vector
	threshold float64
	match     datastructure.LocationMatch
	matched   bool
	err       error
}

// Engine. one navigation session. a single update loop owns every piece of
// guidance-affecting state (sequence pointer, off-track counter, last spoken
// instruction, capture flag); sensors and ticks feed it through channels and
// nothing outside the loop mutates session state once navigation started.
type Engine struct {
	log *zap.Logger
	cfg Config

	planner   *planner.RoutePlanner
	localizer *localizer.Localizer
	estimator *deadreckoning.Estimator
	resolver  PathResolver
	snapper   NodeSnapper
	camera    CaptureFunc

	// mu guards the fields below: the loop goroutine mutates them while the
	// transport goroutine snapshots them through the public accessors.
	mu          sync.RWMutex
	state       State
	currentNode datastructure.Node
	route       datastructure.Route
	path        datastructure.WaypointPath

	currentSeq       int
	passed           int
	offTrackCount    int
	recoveryAttempts int
	forceReconfirm   bool

	lastInstruction   string
	lastInstructionAt time.Time

	// captureInFlight makes frame processing non-reentrant: the tick fires
	// faster than the capture+embed round trip, and a stopped session uses
	// the same flag to discard a late result.
	captureInFlight atomic.Bool

	headingCh chan float64
	stepCh    chan int
	frameCh   chan frameResult
	controlCh chan func()
	guidance  chan Instruction

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

func NewEngine(log *zap.Logger, rp *planner.RoutePlanner, loc *localizer.Localizer,
	est *deadreckoning.Estimator, resolver PathResolver, snapper NodeSnapper,
	camera CaptureFunc, cfg Config) *Engine {
	return &Engine{
		log:       log,
		cfg:       cfg,
		planner:   rp,
		localizer: loc,
		estimator: est,
		resolver:  resolver,
		snapper:   snapper,
		camera:    camera,
		state:     Idle,
		headingCh: make(chan float64, 16),
		stepCh:    make(chan int, 16),
		frameCh:   make(chan frameResult, 1),
		controlCh: make(chan func(), 4),
		guidance:  make(chan Instruction, 32),
		now:       time.Now,
	}
}

// Guidance. stream of discrete instruction events for the surrounding
// application to speak or display.
func (e *Engine) Guidance() <-chan Instruction {
	return e.guidance
}

// HeadingUpdates. compass sample sink. the compass may be unavailable,
// senders just stop writing then.
func (e *Engine) HeadingUpdates() chan<- float64 {
	return e.headingCh
}

// StepUpdates. step counter sink, running totals.
func (e *Engine) StepUpdates() chan<- int {
	return e.stepCh
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) CurrentRoute() datastructure.Route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.route
}

// CurrentPath the waypoint recording resolved for the current route.
func (e *Engine) CurrentPath() datastructure.WaypointPath {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path
}

func (e *Engine) setState(to State) {
	e.mu.Lock()
	e.state = to
	e.mu.Unlock()
}

// transition move to a new state when the transition table allows it.
// illegal transitions are logged and refused so an error path can never leave
// the machine in an inconsistent position.
func (e *Engine) transition(to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == to {
		return true
	}
	if !canTransition(e.state, to) {
		e.log.Error("refusing illegal state transition",
			zap.String("from", e.state.String()), zap.String("to", to.String()))
		return false
	}
	e.log.Info("state transition",
		zap.String("from", e.state.String()), zap.String("to", to.String()))
	e.state = to
	return true
}

// StartLocating. pre-navigation: figure out where the user is from a short
// rotate-in-place scan. leaves the session in SelectingDestination on success.
func (e *Engine) StartLocating(ctx context.Context, frames [][]byte) (datastructure.LocationMatch, error) {
	if st := e.State(); st != Idle && st != Lost && st != DestinationReached {
		return datastructure.LocationMatch{}, util.WrapErrorf(nil, util.ErrConflict,
			"cannot locate while %s", st)
	}
	e.transition(Locating)

	match, ok, err := e.localizer.LocalizeMulti(ctx, frames)
	if err != nil {
		e.transition(Idle)
		return datastructure.LocationMatch{}, err
	}
	if !ok {
		// stay in Locating, the user is asked to scan again
		e.emit(Instruction{
			Text: "I could not recognize this place. Please look around slowly so I can try again",
			Kind: KindInfo,
		})
		return datastructure.LocationMatch{}, util.WrapErrorf(nil, util.ErrNotFound,
			"no confident location match")
	}

	node, found := e.planner.GetNode(match.GetId())
	if !found {
		e.transition(Idle)
		return datastructure.LocationMatch{}, util.WrapErrorf(nil, util.ErrNotFound,
			"matched location %q has no graph node", match.GetId())
	}

	e.mu.Lock()
	e.currentNode = node
	e.mu.Unlock()
	e.transition(SelectingDestination)
	return match, nil
}

// ChooseDestination. plan a route from the located node. "no route" is a
// user-facing condition, the session returns to destination selection.
func (e *Engine) ChooseDestination(ctx context.Context, destinationId string) (datastructure.Route, error) {
	if st := e.State(); st != SelectingDestination {
		return datastructure.Route{}, util.WrapErrorf(nil, util.ErrConflict,
			"cannot plan while %s", st)
	}
	e.transition(Planning)

	e.mu.RLock()
	fromId := e.currentNode.GetId()
	e.mu.RUnlock()

	route, err := e.planner.FindRoute(fromId, destinationId)
	if err != nil {
		e.transition(SelectingDestination)
		if errors.Is(err, planner.ErrNoRouteFound) {
			e.emit(Instruction{
				Text: "I could not find a way there from here. Please choose another destination",
				Kind: KindInfo,
			})
		}
		return datastructure.Route{}, err
	}

	path, err := e.resolver.ResolvePath(ctx, route)
	if err != nil {
		e.transition(SelectingDestination)
		return datastructure.Route{}, err
	}

	e.mu.Lock()
	e.route = route
	e.path = path
	e.mu.Unlock()
	return route, nil
}

// StartNavigation. begin guidance along a planned route and its recorded
// waypoint path. a zero-step route (start == destination) arrives immediately.
func (e *Engine) StartNavigation(ctx context.Context, route datastructure.Route,
	path datastructure.WaypointPath) error {
	if st := e.State(); st != Idle && st != Planning {
		return util.WrapErrorf(nil, util.ErrConflict,
			"cannot start navigation while %s", st)
	}

	e.mu.Lock()
	e.route = route
	e.path = path
	e.mu.Unlock()
	e.passed = 0
	e.offTrackCount = 0
	e.recoveryAttempts = 0
	e.forceReconfirm = false
	e.lastInstruction = ""
	e.lastInstructionAt = time.Time{}

	if route.Completed() {
		e.setState(DestinationReached)
		e.emit(Instruction{Text: "You are already at your destination", Kind: KindArrived})
		return nil
	}

	firstSeq, ok := path.FirstSeq()
	if !ok {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "waypoint path is empty")
	}
	e.currentSeq = firstSeq

	if !e.transition(InitialOrientation) {
		return util.WrapErrorf(nil, util.ErrConflict, "cannot enter orientation")
	}

	step, _ := route.CurrentStep()
	e.estimator.StartTracking(datastructure.NewPosition(
		step.GetFrom().GetCoord(), step.GetHeading(), e.now(), 1.0))

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(runCtx)
	return nil
}

// SkipOrientation. the user elects to step off without aligning first.
func (e *Engine) SkipOrientation() {
	select {
	case e.controlCh <- func() {
		if st := e.State(); st == InitialOrientation || st == ReorientingUser {
			e.beginNavigating()
		}
	}:
	default:
	}
}

// Stop. cooperative cancellation: the tick timer and sensor draining stop
// before Stop returns; an in-flight localization completes on its own and its
// result is discarded because the loop is gone.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.mu.Lock()
	if !e.state.Terminal() {
		e.state = Idle
	}
	e.mu.Unlock()
}

// loop. the single owner of all session state while navigating.
func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case h := <-e.headingCh:
			e.onHeading(h)
		case s := <-e.stepCh:
			e.onStep(s)
		case fn := <-e.controlCh:
			fn()
		case res := <-e.frameCh:
			e.onFrameResult(ctx, res)
		case <-ticker.C:
			e.onTick(ctx)
			if e.State().Terminal() {
				return
			}
		}
	}
}

// onHeading feed the estimator and drive the orientation phase.
func (e *Engine) onHeading(deg float64) {
	e.estimator.AddHeadingSample(deg)

	if st := e.State(); st != InitialOrientation && st != ReorientingUser {
		return
	}

	target, ok := e.path.BySeq(e.currentSeq)
	if !ok {
		return
	}

	diff := geo.AngularDifference(deg, target.GetHeading())
	text, aligned := orientationGuidance(diff)
	if aligned || (diff < e.cfg.OrientationTolerance && diff > -e.cfg.OrientationTolerance) {
		e.beginNavigating()
		return
	}
	e.say(Instruction{Text: text, Kind: KindOrientation, TargetHeading: target.GetHeading()})
}

func (e *Engine) beginNavigating() {
	if !e.transition(Navigating) {
		return
	}
	e.lastInstruction = ""
	if step, ok := e.route.CurrentStep(); ok {
		e.emit(Instruction{
			Text:          step.GetInstruction(),
			Kind:          KindForward,
			TargetHeading: step.GetHeading(),
			Progress:      e.progress(),
		})
	}
}

// onStep feed the estimator and watch for drift off the planned segment.
func (e *Engine) onStep(totalSteps int) {
	pos, ok := e.estimator.OnStepCount(totalSteps)
	if !ok {
		return
	}

	if st := e.State(); st != Navigating && st != ApproachingWaypoint {
		return
	}

	step, hasStep := e.route.CurrentStep()
	if !hasStep {
		return
	}

	// dead reckoning drifting away from the current segment is the designed
	// trigger to stop trusting it and force a visual reconfirmation
	expected := geo.ProjectPointToSegment(step.GetFrom().GetCoord(), step.GetTo().GetCoord(), pos.GetCoord())
	if e.estimator.IsPositionDeviation(expected, e.cfg.DeviationTolerance) {
		e.forceReconfirm = true
	}
}

// onTick schedule one capture round unless the previous one is still running.
func (e *Engine) onTick(ctx context.Context) {
	mode := captureProgress
	switch e.State() {
	case Navigating, ApproachingWaypoint:
		if e.forceReconfirm {
			mode = captureReconfirm
		}
	case OffTrack, Reconfirming:
		mode = captureReconfirm
	default:
		return
	}

	if !e.captureInFlight.CompareAndSwap(false, true) {
		return
	}

	if mode == captureReconfirm {
		e.transition(Reconfirming)
	}

	// reconfirmation does not need the target waypoint; a session with a
	// broken sequence pointer must still be able to relocalize or go Lost
	beforeTurn := false
	if mode == captureProgress {
		target, ok := e.path.BySeq(e.currentSeq)
		if !ok {
			e.captureInFlight.Store(false)
			e.log.Error("no waypoint for current sequence pointer", zap.Int("seq", e.currentSeq))
			return
		}
		beforeTurn = target.GetTurn() != pkg.STRAIGHT_ON || target.IsDecisionPoint()
	}

	go e.capture(ctx, mode, beforeTurn)
}

// capture runs the slow path (camera IO plus remote embedding calls) off the
// loop. the result is handed back through frameCh; if the session stopped in
// the meantime nobody reads it and the buffered send below just parks.
func (e *Engine) capture(ctx context.Context, mode captureMode, beforeTurn bool) {
	var res frameResult
	res.mode = mode

	frame, err := e.camera(ctx)
	if err != nil {
		res.err = err
	} else if mode == captureReconfirm {
		match, ok, lerr := e.localizer.LocalizeEnhanced(ctx, frame)
		res.match, res.matched, res.err = match, ok, lerr
	} else {
		res.vec, res.threshold = e.localizer.NavigationEmbed(ctx, frame, beforeTurn)
	}

	select {
	case e.frameCh <- res:
	case <-ctx.Done():
		e.captureInFlight.Store(false)
	}
}

func (e *Engine) onFrameResult(ctx context.Context, res frameResult) {
	// clearing the flag on every path keeps the next tick alive no matter
	// what went wrong in this round
	defer e.captureInFlight.Store(false)

	if res.mode == captureReconfirm {
		e.applyRecovery(ctx, res)
		return
	}

	if res.err != nil {
		e.log.Warn("frame capture failed", zap.Error(res.err))
		return
	}
	e.processFrame(res.vec, res.threshold)
}

// processFrame. the three-way per-frame progress branch.
func (e *Engine) processFrame(vec datastructure.Vector, threshold float64) {
	if st := e.State(); st != Navigating && st != ApproachingWaypoint {
		return
	}

	target, ok := e.path.BySeq(e.currentSeq)
	if !ok {
		e.log.Error("no waypoint for current sequence pointer", zap.Int("seq", e.currentSeq))
		return
	}

	similarity := datastructure.CosineSimilarity(vec, target.GetEmbedding())

	switch {
	case similarity >= threshold:
		e.offTrackCount = 0
		e.advanceWaypoint(target)

	case similarity < e.cfg.OffTrackThreshold:
		// single noisy frames must not trigger false alarms, only a run of
		// consecutive misses does
		e.offTrackCount++
		if e.offTrackCount >= e.cfg.OffTrackTriggerCount {
			e.offTrackCount = 0
			if e.transition(OffTrack) {
				e.emit(Instruction{
					Text:     "You seem to be off the path. Please walk back a few steps",
					Kind:     KindOffTrack,
					Progress: e.progress(),
				})
			}
		}

	default:
		e.offTrackCount = 0
		if similarity >= threshold-e.cfg.ApproachMargin && target.IsDecisionPoint() {
			e.transition(ApproachingWaypoint)
		} else if e.State() == ApproachingWaypoint {
			e.transition(Navigating)
		}
		e.say(Instruction{
			Text:          forwardGuidance(target.GetTurn(), target.GetLandmark()),
			Kind:          KindForward,
			TargetHeading: target.GetHeading(),
			Progress:      e.progress(),
		})
	}
}

// advanceWaypoint move the sequence pointer to the next recorded waypoint.
// clears the spoken-instruction cache so the next instruction always plays.
func (e *Engine) advanceWaypoint(reached datastructure.Waypoint) {
	e.passed++
	e.lastInstruction = ""
	e.estimator.UpdateKnownPosition(e.waypointPosition(reached))

	next, hasNext := e.path.NextSeqAfter(e.currentSeq)
	if !hasNext {
		if e.transition(DestinationReached) {
			dest, _ := e.route.Destination()
			e.emit(Instruction{
				Text:     fmt.Sprintf("You have arrived at %s", dest.GetName()),
				Kind:     KindArrived,
				Progress: e.progress(),
			})
		}
		return
	}

	e.currentSeq = next
	if e.State() == ApproachingWaypoint {
		e.transition(Navigating)
	}

	if reached.IsDecisionPoint() && !e.route.Completed() {
		e.mu.Lock()
		e.route = e.route.PopFirstStep()
		e.mu.Unlock()
	}

	e.emit(Instruction{
		Text:     "Waypoint reached",
		Kind:     KindWaypointReached,
		Progress: e.progress(),
	})
	if step, ok := e.route.CurrentStep(); ok && reached.IsDecisionPoint() {
		e.emit(Instruction{
			Text:          step.GetInstruction(),
			Kind:          KindForward,
			TargetHeading: step.GetHeading(),
			Progress:      e.progress(),
		})
	}
}

// waypointPosition best-effort map position of a reached waypoint: the
// current step's target node once the step is exhausted, otherwise a point
// along the segment proportional to recorded distances.
func (e *Engine) waypointPosition(w datastructure.Waypoint) datastructure.Position {
	step, ok := e.route.CurrentStep()
	if !ok {
		if pos, tracked := e.estimator.CurrentPosition(); tracked {
			return datastructure.NewPosition(pos.GetCoord(), w.GetHeading(), e.now(), 1.0)
		}
		return datastructure.NewPosition((datastructure.Node{}).GetCoord(), w.GetHeading(), e.now(), 1.0)
	}
	if w.IsDecisionPoint() {
		return datastructure.NewPosition(step.GetTo().GetCoord(), w.GetHeading(), e.now(), 1.0)
	}
	if pos, tracked := e.estimator.CurrentPosition(); tracked {
		snapped := geo.ProjectPointToSegment(step.GetFrom().GetCoord(), step.GetTo().GetCoord(), pos.GetCoord())
		return datastructure.NewPosition(snapped, w.GetHeading(), e.now(), 1.0)
	}
	return datastructure.NewPosition(step.GetFrom().GetCoord(), w.GetHeading(), e.now(), 1.0)
}

// applyRecovery outcome of a reconfirmation round.
func (e *Engine) applyRecovery(ctx context.Context, res frameResult) {
	e.forceReconfirm = false

	if res.err != nil || !res.matched {
		if res.err != nil {
			e.log.Warn("reconfirmation round failed", zap.Error(res.err))
		}
		e.recoveryAttempts++
		if e.recoveryAttempts >= e.cfg.MaxRecoveryAttempts {
			if e.transition(Lost) {
				e.emit(Instruction{
					Text: "I have lost track of where you are. Please move to a recognizable landmark and we will start over",
					Kind: KindLost,
				})
			}
			return
		}
		e.say(Instruction{
			Text: "Trying to find where you are, hold the camera up for a moment",
			Kind: KindRecovery,
		})
		return
	}

	e.recoveryAttempts = 0
	node, found := e.planner.GetNode(res.match.GetId())
	if !found && e.snapper != nil {
		if pos, tracked := e.estimator.CurrentPosition(); tracked {
			node, found = e.snapper.Nearest(pos.GetCoord().X, pos.GetCoord().Y)
		}
	}
	if !found {
		e.log.Warn("confirmed location has no graph node", zap.String("matchId", res.match.GetId()))
		e.transition(Navigating)
		return
	}

	heading, ok := e.estimator.SmoothedHeading()
	if !ok {
		heading = 0
	}
	// confirmed match replaces the estimate wholesale
	e.estimator.UpdateKnownPosition(datastructure.NewPosition(
		node.GetCoord(), heading, e.now(), 1.0))

	step, hasStep := e.route.CurrentStep()
	if hasStep && node.GetId() != step.GetFrom().GetId() {
		e.replanFrom(ctx, node)
		return
	}

	if e.transition(Navigating) {
		e.say(Instruction{
			Text:     fmt.Sprintf("Found you near %s. Continue on", node.GetName()),
			Kind:     KindRecovery,
			Progress: e.progress(),
		})
	}
}

// replanFrom recompute the route after recovery confirmed the user somewhere
// other than the expected step origin.
func (e *Engine) replanFrom(ctx context.Context, node datastructure.Node) {
	dest, hasDest := e.route.Destination()
	if !hasDest {
		e.transition(Navigating)
		return
	}

	route, err := e.planner.FindRoute(node.GetId(), dest.GetId())
	if err != nil {
		e.log.Warn("replanning failed", zap.Error(err))
		e.recoveryAttempts++
		if e.recoveryAttempts >= e.cfg.MaxRecoveryAttempts {
			e.transition(Lost)
		} else {
			e.transition(Navigating)
		}
		return
	}

	path, err := e.resolver.ResolvePath(ctx, route)
	if err != nil {
		e.log.Warn("no waypoint path for replanned route", zap.Error(err))
		e.transition(Navigating)
		return
	}

	e.mu.Lock()
	e.route = route
	e.path = path
	e.currentNode = node
	e.mu.Unlock()
	e.passed = 0
	if firstSeq, ok := path.FirstSeq(); ok {
		e.currentSeq = firstSeq
	}

	if route.Completed() {
		e.transition(Navigating)
		e.transition(DestinationReached)
		e.emit(Instruction{Text: fmt.Sprintf("You have arrived at %s", dest.GetName()), Kind: KindArrived})
		return
	}

	if e.transition(Navigating) {
		if step, ok := route.CurrentStep(); ok {
			e.emit(Instruction{
				Text:          fmt.Sprintf("New route from %s. %s", node.GetName(), step.GetInstruction()),
				Kind:          KindForward,
				TargetHeading: step.GetHeading(),
				Progress:      e.progress(),
			})
		}
	}
}

func (e *Engine) progress() Progress {
	return Progress{
		WaypointSeq: e.currentSeq,
		Passed:      e.passed,
		Total:       e.path.Len(),
	}
}

// say rate-limited emit: the same instruction is not repeated inside the
// cool-down window even though the per-frame check fires every tick.
func (e *Engine) say(in Instruction) {
	now := e.now()
	if in.Text == e.lastInstruction && now.Sub(e.lastInstructionAt) < e.cfg.InstructionCooldown {
		return
	}
	e.lastInstruction = in.Text
	e.lastInstructionAt = now
	e.emit(in)
}

// emit non-blocking send; a slow consumer loses old guidance rather than
// stalling the update loop.
func (e *Engine) emit(in Instruction) {
	select {
	case e.guidance <- in:
	default:
		e.log.Warn("guidance sink full, dropping instruction", zap.String("text", in.Text))
	}
}
