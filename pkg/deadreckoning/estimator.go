package deadreckoning

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/geo"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

type Config struct {
	StrideLengthMeter float64
	HeadingWindowSize int
	ConfidenceWindow  time.Duration
	DecayFactor       float64
	MinConfidence     float64
	PredictionPenalty float64
}

func DefaultConfig() Config {
	return Config{
		StrideLengthMeter: pkg.DEFAULT_STRIDE_LENGTH_METER,
		HeadingWindowSize: pkg.DEFAULT_HEADING_WINDOW_SIZE,
		ConfidenceWindow:  time.Duration(pkg.DEFAULT_CONFIDENCE_WINDOW_SECOND * float64(time.Second)),
		DecayFactor:       pkg.DEFAULT_CONFIDENCE_DECAY_FACTOR,
		MinConfidence:     pkg.DEFAULT_MIN_POSITION_CONFIDENCE,
		PredictionPenalty: pkg.DEFAULT_PREDICTION_PENALTY,
	}
}

// Estimator. dead-reckoning position estimator between visual confirmations.
// projects step-count deltas along the smoothed compass heading from the last
// confirmed position, with confidence decaying over time since confirmation.
//
// owned by a single navigation session and only ever called from its update
// loop, so no locking here.
type Estimator struct {
	log *zap.Logger
	cfg Config

	tracking bool
	current  datastructure.Position

	// step sensors report a monotonically increasing total, not deltas, so
	// the last seen total is what projection diffs against.
	lastSteps       int
	lastConfirmedAt time.Time
	lastMovedAt     time.Time
	speed           float64 // meter/second, from the last step burst

	headingSamples []float64
	headingNext    int
	headingCount   int

	now func() time.Time
}

func NewEstimator(log *zap.Logger, cfg Config) *Estimator {
	if cfg.HeadingWindowSize <= 0 {
		cfg.HeadingWindowSize = pkg.DEFAULT_HEADING_WINDOW_SIZE
	}
	return &Estimator{
		log:            log,
		cfg:            cfg,
		headingSamples: make([]float64, cfg.HeadingWindowSize),
		now:            time.Now,
	}
}

// StartTracking begin dead reckoning from an initial confirmed position.
func (e *Estimator) StartTracking(initial datastructure.Position) {
	e.tracking = true
	e.reset(initial)
}

// UpdateKnownPosition fold a fresh visual confirmation into the estimator.
// the stored position is replaced wholesale and confidence returns to 1.0,
// this is the only path that raises confidence.
func (e *Estimator) UpdateKnownPosition(confirmed datastructure.Position) {
	if !e.tracking {
		e.StartTracking(confirmed)
		return
	}
	e.reset(confirmed)
}

func (e *Estimator) reset(pos datastructure.Position) {
	now := e.now()
	e.current = datastructure.NewPosition(pos.GetCoord(), pos.GetHeading(), now, 1.0)
	e.lastConfirmedAt = now
	e.lastMovedAt = now
	e.speed = 0
}

func (e *Estimator) IsTracking() bool {
	return e.tracking
}

// AddHeadingSample push one compass sample into the smoothing window.
// the compass may be unavailable, callers simply stop feeding samples then and
// projection falls back to the last known heading with whatever confidence
// decay has already applied.
func (e *Estimator) AddHeadingSample(deg float64) {
	e.headingSamples[e.headingNext] = geo.NormalizeHeading(deg)
	e.headingNext = (e.headingNext + 1) % len(e.headingSamples)
	if e.headingCount < len(e.headingSamples) {
		e.headingCount++
	}
}

// SmoothedHeading circular moving average over the last samples. a naive
// arithmetic mean would average {359°, 1°} to 180°.
func (e *Estimator) SmoothedHeading() (float64, bool) {
	if e.headingCount == 0 {
		return 0, false
	}
	window := make([]float64, 0, e.headingCount)
	for i := 0; i < e.headingCount; i++ {
		window = append(window, e.headingSamples[i])
	}
	return geo.CircularMean(window)
}

// OnStepCount consume the step sensor's running total and emit the updated
// position estimate.
func (e *Estimator) OnStepCount(totalSteps int) (datastructure.Position, bool) {
	if !e.tracking {
		return datastructure.Position{}, false
	}

	delta := totalSteps - e.lastSteps
	e.lastSteps = totalSteps
	if delta <= 0 {
		return e.current, true
	}

	heading, ok := e.SmoothedHeading()
	if !ok {
		heading = e.current.GetHeading()
	}

	distance := float64(delta) * e.cfg.StrideLengthMeter
	rad := util.DegreeToRadians(heading)
	moved := r2.Point{
		X: e.current.GetCoord().X + math.Sin(rad)*distance,
		Y: e.current.GetCoord().Y + math.Cos(rad)*distance,
	}

	now := e.now()
	if dt := now.Sub(e.lastMovedAt).Seconds(); dt > 0 {
		e.speed = distance / dt
	}
	e.lastMovedAt = now

	e.current = datastructure.NewPosition(moved, heading, now, e.confidenceAt(now))
	return e.current, true
}

// confidenceAt decays linearly with time since the last visual confirmation,
// floored at MinConfidence. monotonically non-increasing between confirmations.
func (e *Estimator) confidenceAt(now time.Time) float64 {
	elapsed := now.Sub(e.lastConfirmedAt)
	conf := 1.0 - (elapsed.Seconds()/e.cfg.ConfidenceWindow.Seconds())*e.cfg.DecayFactor
	return math.Max(e.cfg.MinConfidence, conf)
}

func (e *Estimator) CurrentPosition() (datastructure.Position, bool) {
	if !e.tracking {
		return datastructure.Position{}, false
	}
	return e.current, true
}

// PredictPosition extrapolate the estimate futureDuration ahead using the last
// observed walking speed and heading, with a flat confidence penalty on top of
// the regular decay.
func (e *Estimator) PredictPosition(futureDuration time.Duration) (datastructure.Position, bool) {
	if !e.tracking {
		return datastructure.Position{}, false
	}

	distance := e.speed * futureDuration.Seconds()
	rad := util.DegreeToRadians(e.current.GetHeading())
	predicted := r2.Point{
		X: e.current.GetCoord().X + math.Sin(rad)*distance,
		Y: e.current.GetCoord().Y + math.Cos(rad)*distance,
	}

	future := e.now().Add(futureDuration)
	conf := math.Max(e.cfg.MinConfidence,
		e.confidenceAt(future)-e.cfg.PredictionPenalty)
	return datastructure.NewPosition(predicted, e.current.GetHeading(), future, conf), true
}

// IsPositionDeviation euclidean threshold test against an expected position,
// used by the navigation engine to decide whether dead reckoning is still
// trustworthy or a re-localization must be forced.
func (e *Estimator) IsPositionDeviation(expected r2.Point, tolerance float64) bool {
	if !e.tracking {
		return false
	}
	return geo.EuclideanDistance(e.current.GetCoord(), expected) > tolerance
}
