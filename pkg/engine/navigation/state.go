package navigation

// State. navigation session state machine.
//
// pre-navigation flow: Idle -> Locating -> SelectingDestination -> Planning ->
// InitialOrientation -> Navigating. while navigating the session oscillates
// between Navigating and ApproachingWaypoint, with ReorientingUser, OffTrack
// and Reconfirming as recoverable side branches. DestinationReached and Lost
// are terminal, Idle doubles as the cancelled state.
type State uint8

const (
	Idle State = iota
	Locating
	SelectingDestination
	Planning
	InitialOrientation
	Navigating
	ApproachingWaypoint
	ReorientingUser
	Reconfirming
	OffTrack
	Lost
	DestinationReached
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Locating:
		return "locating"
	case SelectingDestination:
		return "selectingDestination"
	case Planning:
		return "planning"
	case InitialOrientation:
		return "initialOrientation"
	case Navigating:
		return "navigating"
	case ApproachingWaypoint:
		return "approachingWaypoint"
	case ReorientingUser:
		return "reorientingUser"
	case Reconfirming:
		return "reconfirming"
	case OffTrack:
		return "offTrack"
	case Lost:
		return "lost"
	case DestinationReached:
		return "destinationReached"
	default:
		return "unknown"
	}
}

// Terminal. no further transitions except a full restart from Locating.
func (s State) Terminal() bool {
	return s == DestinationReached || s == Lost
}

var legalTransitions = map[State][]State{
	Idle:                 {Locating, InitialOrientation},
	Locating:             {SelectingDestination, Locating, Idle},
	SelectingDestination: {Planning, Idle},
	Planning:             {InitialOrientation, SelectingDestination, Idle},
	InitialOrientation:   {Navigating, ReorientingUser, Idle},
	ReorientingUser:      {InitialOrientation, Navigating, Idle},
	Navigating:           {ApproachingWaypoint, OffTrack, Reconfirming, DestinationReached, Idle},
	ApproachingWaypoint:  {Navigating, DestinationReached, OffTrack, Reconfirming, Idle},
	OffTrack:             {Reconfirming, Navigating, Lost, Idle},
	Reconfirming:         {Navigating, OffTrack, Lost, Idle},
	Lost:                 {Locating},
	DestinationReached:   {Locating, Idle},
}

func canTransition(from, to State) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
