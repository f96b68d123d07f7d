package geo

import (
	"math"

	"github.com/rizkia-p/wayfindr/pkg/util"
)

// NormalizeHeading wrap a compass heading into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	return deg
}

/*
AngularDifference. shortest signed angular delta from `from` to `to`, in (-180, 180].

naive subtraction breaks around the 0°/360° seam:

	from = 350°, to = 10°   -> 10 - 350 = -340°, but the user only has to turn +20°.
	from = 10°,  to = 350°  -> 350 - 10 = 340°, but the user only has to turn -20°.

how to fix: normalize both headings first, subtract, then wrap the result back into
(-180, 180]. positive result means turn clockwise (right), negative counter-clockwise.
*/
func AngularDifference(from, to float64) float64 {
	diff := NormalizeHeading(to) - NormalizeHeading(from)
	if diff > 180 {
		diff -= 360
	} else if diff <= -180 {
		diff += 360
	}
	return diff
}

// CircularMean. mean of compass headings computed on unit vectors (sin/cos sums),
// not an arithmetic mean. mean of {359°, 1°} is 0°, not 180°.
// returns false when samples is empty or the vectors cancel out.
func CircularMean(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}

	var sinSum, cosSum float64
	for _, s := range samples {
		rad := util.DegreeToRadians(s)
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	// all vectors cancelled out, mean direction undefined
	if math.Abs(sinSum) < 1e-12 && math.Abs(cosSum) < 1e-12 {
		return 0, false
	}

	mean := util.RadiansToDegree(math.Atan2(sinSum, cosSum))
	return NormalizeHeading(mean), true
}

// HeadingToCardinal bucket a heading into the 4 cardinal direction names used
// when generating instruction text for an edge without a custom instruction.
func HeadingToCardinal(deg float64) string {
	deg = NormalizeHeading(deg)
	switch {
	case deg >= 315 || deg < 45:
		return "north"
	case deg < 135:
		return "east"
	case deg < 225:
		return "south"
	default:
		return "west"
	}
}
