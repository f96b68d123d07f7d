package spatialindex

import (
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/golang/geo/r2"
)

// Rtree spatial index over the building graph's nodes. the navigation engine
// uses it to snap a confirmed or dead-reckoned position back onto a graph
// node when a route has to be recomputed mid-session.
type Rtree struct {
	tr *rtree.RTreeG[datastructure.Node]
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[datastructure.Node]
	return &Rtree{
		tr: &tr,
	}
}

// Build index every node as a point box in the planar map frame (meter).
func (rt *Rtree) Build(nodes []datastructure.Node, log *zap.Logger) {
	for _, n := range nodes {
		p := n.GetCoord()
		rt.tr.Insert([2]float64{p.X, p.Y}, [2]float64{p.X, p.Y}, n)
	}
	log.Info("built node spatial index", zap.Int("nodes", len(nodes)))
}

// SearchWithinRadius all nodes inside the axis-aligned box of radius meter
// around the query point, post-filtered to the true euclidean radius.
func (rt *Rtree) SearchWithinRadius(x, y, radius float64) []datastructure.Node {
	center := r2.Point{X: x, Y: y}

	results := make([]datastructure.Node, 0, 10)
	rt.tr.Search([2]float64{x - radius, y - radius}, [2]float64{x + radius, y + radius},
		func(min, max [2]float64, data datastructure.Node) bool {
			if geo.EuclideanDistance(center, data.GetCoord()) <= radius {
				results = append(results, data)
			}
			return true
		})
	return results
}

// Nearest closest node to the query point, growing the search box until
// something is found.
func (rt *Rtree) Nearest(x, y float64) (datastructure.Node, bool) {
	center := r2.Point{X: x, Y: y}

	for radius := 5.0; radius <= 320.0; radius *= 2 {
		candidates := rt.SearchWithinRadius(x, y, radius)
		if len(candidates) == 0 {
			continue
		}

		best := candidates[0]
		bestDist := geo.EuclideanDistance(center, best.GetCoord())
		for _, c := range candidates[1:] {
			if d := geo.EuclideanDistance(center, c.GetCoord()); d < bestDist {
				best, bestDist = c, d
			}
		}
		return best, true
	}
	return datastructure.Node{}, false
}
