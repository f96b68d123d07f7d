package navigation

import (
	"testing"

	"github.com/rizkia-p/wayfindr/pkg"
)

func TestOrientationGuidanceBuckets(t *testing.T) {
	testCases := []struct {
		name        string
		diff        float64
		want        string
		wantAligned bool
	}{
		{name: "way off to the right", diff: 150, want: "Turn around more to the right"},
		{name: "way off to the left", diff: -150, want: "Turn around more to the left"},
		{name: "quarter off", diff: 60, want: "Turn right"},
		{name: "small correction", diff: -20, want: "Turn a little to the left"},
		{name: "tiny correction", diff: 3, want: "Turn a tiny bit to the right"},
		{name: "aligned", diff: 0.5, want: "You are facing the right way. Walk straight ahead", wantAligned: true},
		{name: "exactly aligned", diff: 0, want: "You are facing the right way. Walk straight ahead", wantAligned: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, aligned := orientationGuidance(tt.diff)
			if got != tt.want || aligned != tt.wantAligned {
				t.Errorf("orientationGuidance(%v) = %q, %v; want %q, %v",
					tt.diff, got, aligned, tt.want, tt.wantAligned)
			}
		})
	}
}

func TestForwardGuidance(t *testing.T) {
	testCases := []struct {
		name     string
		turn     pkg.TurnKind
		landmark string
		want     string
	}{
		{name: "straight", turn: pkg.STRAIGHT_ON, want: "Continue straight ahead"},
		{name: "left turn coming", turn: pkg.LEFT_TURN, want: "Continue ahead, then turn left"},
		{name: "right turn coming", turn: pkg.RIGHT_TURN, want: "Continue ahead, then turn right"},
		{name: "u turn", turn: pkg.U_TURN, want: "Turn around and continue back the way you came"},
		{name: "with landmark", turn: pkg.LEFT_TURN, landmark: "water fountain",
			want: "Continue ahead, then turn left, look for the water fountain"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := forwardGuidance(tt.turn, tt.landmark)
			if got != tt.want {
				t.Errorf("forwardGuidance(%v, %q) = %q, want %q", tt.turn, tt.landmark, got, tt.want)
			}
		})
	}
}
