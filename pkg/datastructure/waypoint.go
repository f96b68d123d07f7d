package datastructure

import (
	"time"

	"github.com/rizkia-p/wayfindr/pkg"
)

// Waypoint. a single recorded visual+heading sample along a previously walked
// path, used as a live matching target during navigation.
//
// seq is the authoritative progress key. waypoints may be filtered or pruned
// after recording, so the position of a waypoint in a slice says nothing about
// where it sits on the path. progress lookups must always go through seq.
type Waypoint struct {
	id            string
	embedding     Vector
	heading       float64
	headingDelta  float64
	turn          pkg.TurnKind
	decisionPoint bool
	landmark      string
	distFromPrev  float64
	recordedAt    time.Time
	seq           int
}

func NewWaypoint(id string, embedding Vector, heading, headingDelta float64,
	turn pkg.TurnKind, decisionPoint bool, landmark string, distFromPrev float64,
	recordedAt time.Time, seq int) Waypoint {
	return Waypoint{
		id:            id,
		embedding:     embedding,
		heading:       heading,
		headingDelta:  headingDelta,
		turn:          turn,
		decisionPoint: decisionPoint,
		landmark:      landmark,
		distFromPrev:  distFromPrev,
		recordedAt:    recordedAt,
		seq:           seq,
	}
}

func (w Waypoint) GetId() string {
	return w.id
}

func (w Waypoint) GetEmbedding() Vector {
	return w.embedding
}

func (w Waypoint) GetHeading() float64 {
	return w.heading
}

func (w Waypoint) GetHeadingDelta() float64 {
	return w.headingDelta
}

func (w Waypoint) GetTurn() pkg.TurnKind {
	return w.turn
}

func (w Waypoint) IsDecisionPoint() bool {
	return w.decisionPoint
}

func (w Waypoint) GetLandmark() string {
	return w.landmark
}

func (w Waypoint) GetDistFromPrev() float64 {
	return w.distFromPrev
}

func (w Waypoint) GetRecordedAt() time.Time {
	return w.recordedAt
}

func (w Waypoint) GetSeq() int {
	return w.seq
}

// WaypointPath. recorded waypoints of one walked path, ordered by sequence
// number. sequence numbers are strictly increasing but not contiguous.
type WaypointPath struct {
	waypoints []Waypoint
}

func NewWaypointPath(waypoints []Waypoint) WaypointPath {
	return WaypointPath{waypoints: waypoints}
}

func (p WaypointPath) GetWaypoints() []Waypoint {
	return p.waypoints
}

func (p WaypointPath) Len() int {
	return len(p.waypoints)
}

// BySeq. waypoint with the exact sequence number, never by slice index.
func (p WaypointPath) BySeq(seq int) (Waypoint, bool) {
	for _, w := range p.waypoints {
		if w.seq == seq {
			return w, true
		}
	}
	return Waypoint{}, false
}

// NextSeqAfter. smallest sequence number strictly greater than seq.
// pruning leaves holes, so the successor of seq is not seq+1 in general.
func (p WaypointPath) NextSeqAfter(seq int) (int, bool) {
	best := -1
	for _, w := range p.waypoints {
		if w.seq > seq && (best == -1 || w.seq < best) {
			best = w.seq
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// FirstSeq. smallest sequence number on the path.
func (p WaypointPath) FirstSeq() (int, bool) {
	if len(p.waypoints) == 0 {
		return 0, false
	}
	best := p.waypoints[0].seq
	for _, w := range p.waypoints[1:] {
		if w.seq < best {
			best = w.seq
		}
	}
	return best, true
}
