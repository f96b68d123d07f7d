package pkg

// enum of turn_kind. classification of the heading change at a waypoint,
// recorded while the reference path was walked.
type TurnKind uint8

const (
	STRAIGHT_ON TurnKind = iota
	LEFT_TURN
	RIGHT_TURN
	U_TURN
	NONE
)

func (t TurnKind) String() string {
	switch t {
	case STRAIGHT_ON:
		return "straight"
	case LEFT_TURN:
		return "left"
	case RIGHT_TURN:
		return "right"
	case U_TURN:
		return "u-turn"
	default:
		return "none"
	}
}

// enum of landmark side relative to walking direction.
type LandmarkSide uint8

const (
	SIDE_LEFT LandmarkSide = iota
	SIDE_RIGHT
	SIDE_AHEAD
)

func (s LandmarkSide) String() string {
	switch s {
	case SIDE_LEFT:
		return "on your left"
	case SIDE_RIGHT:
		return "on your right"
	default:
		return "ahead of you"
	}
}

const (
	INF_WEIGHT float64 = 1e15
)

// default tuning values. every one of them is overridable through viper config,
// they vary between deployments and are not architectural invariants.
const (
	DEFAULT_STRIDE_LENGTH_METER       = 0.7
	DEFAULT_HEADING_WINDOW_SIZE       = 5
	DEFAULT_CONFIDENCE_WINDOW_SECOND  = 30.0
	DEFAULT_CONFIDENCE_DECAY_FACTOR   = 0.9
	DEFAULT_MIN_POSITION_CONFIDENCE   = 0.1
	DEFAULT_PREDICTION_PENALTY        = 0.2
	DEFAULT_MATCH_CONFIDENCE_MIN      = 0.6
	DEFAULT_VLM_CANDIDATE_SIMILARITY  = 0.8
	DEFAULT_TOPK_CANDIDATES           = 8
	DEFAULT_VLM_ACCEPT_CONFIDENCE     = 70.0
	DEFAULT_EMBEDDING_BLEND_WEIGHT    = 0.6
	DEFAULT_CLEAN_SCENE_THRESHOLD     = 0.88
	DEFAULT_CROWDED_SCENE_RELAXATION  = 0.12
	DEFAULT_PRE_TURN_THRESHOLD_BONUS  = 0.04
	DEFAULT_OFFTRACK_THRESHOLD        = 0.45
	DEFAULT_OFFTRACK_TRIGGER_COUNT    = 3
	DEFAULT_INSTRUCTION_COOLDOWN_SEC  = 6.0
	DEFAULT_TICK_INTERVAL_MS          = 750
	DEFAULT_ORIENTATION_TOLERANCE_DEG = 1.0
	DEFAULT_DEVIATION_TOLERANCE_METER = 5.0
	DEFAULT_MAX_RECOVERY_ATTEMPTS     = 3
)

const (
	DEBUG = false
)
