package datastructure

import (
	"testing"
	"time"

	"github.com/rizkia-p/wayfindr/pkg"
)

func prunedPath() WaypointPath {
	// seq 2 was pruned after recording, the holes are intentional
	now := time.Now()
	return NewWaypointPath([]Waypoint{
		NewWaypoint("w0", Vector{1, 0}, 0, 0, pkg.STRAIGHT_ON, false, "", 0, now, 0),
		NewWaypoint("w1", Vector{0, 1}, 0, 0, pkg.STRAIGHT_ON, false, "", 4, now, 1),
		NewWaypoint("w3", Vector{1, 1}, 90, 90, pkg.RIGHT_TURN, true, "elevator", 5, now, 3),
	})
}

func TestWaypointPathBySeq(t *testing.T) {
	path := prunedPath()

	w, ok := path.BySeq(3)
	if !ok || w.GetId() != "w3" {
		t.Fatalf("BySeq(3) = %v, %v; want w3", w.GetId(), ok)
	}
	if !w.IsDecisionPoint() || w.GetTurn() != pkg.RIGHT_TURN {
		t.Error("seq 3 should be a right-turn decision point")
	}

	if _, ok := path.BySeq(2); ok {
		t.Error("seq 2 was pruned, BySeq must not fall back to slice index")
	}
}

func TestWaypointPathNextSeqAfter(t *testing.T) {
	path := prunedPath()

	testCases := []struct {
		seq    int
		want   int
		wantOk bool
	}{
		{seq: 0, want: 1, wantOk: true},
		{seq: 1, want: 3, wantOk: true},
		{seq: 2, want: 3, wantOk: true},
		{seq: 3, wantOk: false},
	}

	for _, tt := range testCases {
		got, ok := path.NextSeqAfter(tt.seq)
		if ok != tt.wantOk || (ok && got != tt.want) {
			t.Errorf("NextSeqAfter(%d) = %d, %v; want %d, %v", tt.seq, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestWaypointPathFirstSeq(t *testing.T) {
	path := prunedPath()
	first, ok := path.FirstSeq()
	if !ok || first != 0 {
		t.Errorf("FirstSeq = %d, %v; want 0, true", first, ok)
	}

	if _, ok := NewWaypointPath(nil).FirstSeq(); ok {
		t.Error("empty path has no first seq")
	}
}
