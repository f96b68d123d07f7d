package navigation

import "testing"

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{name: "idle starts locating", from: Idle, to: Locating, want: true},
		{name: "locating may retry itself", from: Locating, to: Locating, want: true},
		{name: "planning back to selection on no route", from: Planning, to: SelectingDestination, want: true},
		{name: "navigating to off track", from: Navigating, to: OffTrack, want: true},
		{name: "off track never goes straight back without reconfirming or navigating", from: OffTrack, to: ApproachingWaypoint, want: false},
		{name: "reconfirming can give up as lost", from: Reconfirming, to: Lost, want: true},
		{name: "lost restarts only by locating", from: Lost, to: Navigating, want: false},
		{name: "lost to locating", from: Lost, to: Locating, want: true},
		{name: "arrival allows a fresh session", from: DestinationReached, to: Locating, want: true},
		{name: "no shortcut from idle to navigating", from: Idle, to: Navigating, want: false},
		{name: "approaching may need reconfirmation", from: ApproachingWaypoint, to: Reconfirming, want: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for s := Idle; s <= DestinationReached; s++ {
		isTerminal := s == Lost || s == DestinationReached
		if s.Terminal() != isTerminal {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), isTerminal)
		}
	}
}

func TestTransitionRefusesIllegalMove(t *testing.T) {
	e := navigatingEngine(t)
	e.state = Idle

	if e.transition(Navigating) {
		t.Error("transition must refuse Idle -> Navigating")
	}
	if e.state != Idle {
		t.Errorf("refused transition must not change state, got %s", e.state)
	}
}
