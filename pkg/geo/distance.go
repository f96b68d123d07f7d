package geo

import (
	"math"

	"github.com/golang/geo/r2"
)

// indoor maps are planar per floor, coordinates are meters in the map frame.

func EuclideanDistance(p, q r2.Point) float64 {
	return p.Sub(q).Norm()
}

// BearingBetween. heading in degrees from p to q in the map frame.
// 0° = +y axis (map north), clockwise positive.
func BearingBetween(p, q r2.Point) float64 {
	d := q.Sub(p)
	return NormalizeHeading(180.0 / math.Pi * math.Atan2(d.X, d.Y))
}

// ProjectPointToSegment. orthogonal projection of snap onto segment (a, b),
// clamped to the segment endpoints.
func ProjectPointToSegment(a, b, snap r2.Point) r2.Point {
	ab := b.Sub(a)
	abLenSq := ab.Dot(ab)
	if abLenSq == 0 {
		return a
	}

	t := snap.Sub(a).Dot(ab) / abLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(ab.Mul(t))
}

// PointSegmentDistance. perpendicular distance (meter) from snap to segment (a, b).
func PointSegmentDistance(a, b, snap r2.Point) float64 {
	return EuclideanDistance(snap, ProjectPointToSegment(a, b, snap))
}
