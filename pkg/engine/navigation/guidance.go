package navigation

import (
	"fmt"
	"math"

	"github.com/rizkia-p/wayfindr/pkg"
)

// InstructionKind classifies a guidance event for the presenting application.
type InstructionKind uint8

const (
	KindOrientation InstructionKind = iota
	KindForward
	KindWaypointReached
	KindOffTrack
	KindRecovery
	KindArrived
	KindLost
	KindInfo
)

func (k InstructionKind) String() string {
	switch k {
	case KindOrientation:
		return "orientation"
	case KindForward:
		return "forward"
	case KindWaypointReached:
		return "waypointReached"
	case KindOffTrack:
		return "offTrack"
	case KindRecovery:
		return "recovery"
	case KindArrived:
		return "arrived"
	case KindLost:
		return "lost"
	default:
		return "info"
	}
}

// Progress. how far along the waypoint path the session is. seq is the
// authoritative pointer, passed/total count actual waypoints on the path.
type Progress struct {
	WaypointSeq int
	Passed      int
	Total       int
}

// Instruction. one discrete guidance event for the surrounding application to
// speak or display. the engine never renders anything itself.
type Instruction struct {
	Text          string
	Kind          InstructionKind
	TargetHeading float64
	Progress      Progress
}

// orientationGuidance escalating turn phrasing by magnitude of the signed
// angular difference to the first waypoint's recorded heading.
func orientationGuidance(diff float64) (string, bool) {
	abs := math.Abs(diff)
	dir := "right"
	if diff < 0 {
		dir = "left"
	}

	switch {
	case abs > 90:
		return fmt.Sprintf("Turn around more to the %s", dir), false
	case abs > 45:
		return fmt.Sprintf("Turn %s", dir), false
	case abs > 5:
		return fmt.Sprintf("Turn a little to the %s", dir), false
	case abs > 1:
		return fmt.Sprintf("Turn a tiny bit to the %s", dir), false
	default:
		return "You are facing the right way. Walk straight ahead", true
	}
}

// forwardGuidance continue phrasing derived from the recorded turn
// classification of the waypoint the user is walking toward.
func forwardGuidance(turn pkg.TurnKind, landmark string) string {
	var text string
	switch turn {
	case pkg.LEFT_TURN:
		text = "Continue ahead, then turn left"
	case pkg.RIGHT_TURN:
		text = "Continue ahead, then turn right"
	case pkg.U_TURN:
		text = "Turn around and continue back the way you came"
	default:
		text = "Continue straight ahead"
	}

	if landmark != "" {
		text += fmt.Sprintf(", look for the %s", landmark)
	}
	return text
}
