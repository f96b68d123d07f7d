package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/geo"
)

// stepHeading. recorded average heading when the edge was walked, computed
// bearing between the endpoints otherwise.
func stepHeading(e datastructure.Edge, from, to datastructure.Node) float64 {
	if h, ok := e.GetAvgHeading(); ok {
		// the recorded heading follows the direction the edge was walked in.
		// walking it the other way flips it by 180°.
		if e.GetFromId() == from.GetId() {
			return h
		}
		return geo.NormalizeHeading(h + 180)
	}
	return geo.BearingBetween(from.GetCoord(), to.GetCoord())
}

// buildInstruction. a human-authored instruction on the edge always wins.
// otherwise phrase the step from the heading bucketed into 4 cardinal
// directions plus the rounded distance, with any confirmation landmarks
// appended.
func buildInstruction(e datastructure.Edge, from, to datastructure.Node,
	heading, distance float64) string {

	if custom := e.GetCustomInstruction(); custom != "" {
		return custom
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Head %s for %d meters toward %s",
		geo.HeadingToCardinal(heading), int(math.Round(distance)), to.GetName())

	for _, lm := range e.GetLandmarks() {
		fmt.Fprintf(&sb, ", passing the %s %s", lm.GetKind(), lm.GetSide())
	}
	return sb.String()
}
