package planner

import (
	"errors"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/geo"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

var ErrNoRouteFound = errors.New("no route found")

// RoutePlanner. holds the building graph and answers shortest-path queries.
// the graph is loaded once per session from the map store and immutable after
// Initialize.
type RoutePlanner struct {
	log *zap.Logger

	nodes map[string]datastructure.Node
	// adjacency keeps edges in insertion order per node. dijkstra relaxes with
	// a strict less-than, so between equal-cost paths the first discovered
	// edge wins and results are deterministic.
	adjacency map[string][]datastructure.Edge
}

func NewRoutePlanner(log *zap.Logger) *RoutePlanner {
	return &RoutePlanner{
		log:       log,
		nodes:     make(map[string]datastructure.Node),
		adjacency: make(map[string][]datastructure.Edge),
	}
}

// Initialize build the adjacency index. edges referencing unknown nodes are
// skipped with a log entry, they must not abort the whole load.
func (rp *RoutePlanner) Initialize(nodes []datastructure.Node, edges []datastructure.Edge) {
	rp.nodes = make(map[string]datastructure.Node, len(nodes))
	rp.adjacency = make(map[string][]datastructure.Edge, len(nodes))

	for _, n := range nodes {
		rp.nodes[n.GetId()] = n
	}

	skipped := 0
	for _, e := range edges {
		_, fromOk := rp.nodes[e.GetFromId()]
		_, toOk := rp.nodes[e.GetToId()]
		if !fromOk || !toOk {
			skipped++
			rp.log.Warn("skipping edge with missing endpoint",
				zap.String("edgeId", e.GetId()),
				zap.String("from", e.GetFromId()), zap.String("to", e.GetToId()))
			continue
		}
		rp.adjacency[e.GetFromId()] = append(rp.adjacency[e.GetFromId()], e)
		rp.adjacency[e.GetToId()] = append(rp.adjacency[e.GetToId()], e)
	}

	rp.log.Info("route planner initialized",
		zap.Int("nodes", len(rp.nodes)),
		zap.Int("edges", len(edges)-skipped),
		zap.Int("skippedEdges", skipped))
}

func (rp *RoutePlanner) GetNode(id string) (datastructure.Node, bool) {
	n, ok := rp.nodes[id]
	return n, ok
}

func (rp *RoutePlanner) NumNodes() int {
	return len(rp.nodes)
}

// edgeWeight. measured distance when recorded, euclidean distance between the
// endpoints otherwise.
func (rp *RoutePlanner) edgeWeight(e datastructure.Edge) float64 {
	if e.HasMeasuredDistance() {
		return e.GetMeasuredDistance()
	}
	from := rp.nodes[e.GetFromId()]
	to := rp.nodes[e.GetToId()]
	return geo.EuclideanDistance(from.GetCoord(), to.GetCoord())
}

// FindRoute shortest path from startId to endId using dijkstra.
// start == end returns a valid zero-step route, a missing node is a parameter
// error and an unreachable destination returns ErrNoRouteFound.
func (rp *RoutePlanner) FindRoute(startId, endId string) (datastructure.Route, error) {
	if _, ok := rp.nodes[startId]; !ok {
		return datastructure.Route{}, util.WrapErrorf(nil, util.ErrBadParamInput,
			"unknown start node %q", startId)
	}
	if _, ok := rp.nodes[endId]; !ok {
		return datastructure.Route{}, util.WrapErrorf(nil, util.ErrBadParamInput,
			"unknown end node %q", endId)
	}

	if startId == endId {
		return datastructure.NewRoute([]datastructure.Step{}), nil
	}

	prevEdge, found := rp.dijkstra(startId, endId)
	if !found {
		return datastructure.Route{}, util.WrapErrorf(ErrNoRouteFound, util.ErrNotFound,
			"no path from %q to %q", startId, endId)
	}

	return rp.buildRoute(startId, endId, prevEdge), nil
}

// buildRoute walk the predecessor chain back from end to start and emit steps
// in forward order.
func (rp *RoutePlanner) buildRoute(startId, endId string,
	prevEdge map[string]datastructure.Edge) datastructure.Route {

	backward := make([]datastructure.Step, 0)
	cur := endId
	for cur != startId {
		e := prevEdge[cur]
		prev, _ := e.OtherEnd(cur)
		from := rp.nodes[prev]
		to := rp.nodes[cur]

		heading := stepHeading(e, from, to)
		step := datastructure.NewStep(from, to, e,
			buildInstruction(e, from, to, heading, rp.edgeWeight(e)),
			heading, rp.edgeWeight(e), e.GetStepCount(), e.GetLandmarks())
		backward = append(backward, step)
		cur = prev
	}

	return datastructure.NewRoute(util.ReverseG(backward))
}

// FindNearbyNodes nodes within radius meter of center, closest first.
// plain scan, the building graphs are small enough that an index would not pay
// for itself here.
func (rp *RoutePlanner) FindNearbyNodes(center r2.Point, radius float64) []datastructure.Node {
	nearby := make([]datastructure.Node, 0)
	for _, n := range rp.nodes {
		if geo.EuclideanDistance(center, n.GetCoord()) <= radius {
			nearby = append(nearby, n)
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		di := geo.EuclideanDistance(center, nearby[i].GetCoord())
		dj := geo.EuclideanDistance(center, nearby[j].GetCoord())
		if di == dj {
			return nearby[i].GetId() < nearby[j].GetId()
		}
		return di < dj
	})
	return nearby
}

// AllDestinations every node except excludingId, sorted by display name.
func (rp *RoutePlanner) AllDestinations(excludingId string) []datastructure.Node {
	dests := make([]datastructure.Node, 0, len(rp.nodes))
	for _, n := range rp.nodes {
		if n.GetId() == excludingId {
			continue
		}
		dests = append(dests, n)
	}

	sort.Slice(dests, func(i, j int) bool {
		if dests[i].GetName() == dests[j].GetName() {
			return dests[i].GetId() < dests[j].GetId()
		}
		return dests[i].GetName() < dests[j].GetName()
	})
	return dests
}
