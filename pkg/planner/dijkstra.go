package planner

import (
	"github.com/rizkia-p/wayfindr/pkg"
	da "github.com/rizkia-p/wayfindr/pkg/datastructure"
)

// dijkstra. single-source search from startId until endId is settled.
// returns the predecessor edge of every settled node on the shortest-path
// tree. edge weight = measured distance if present, euclidean otherwise.
func (rp *RoutePlanner) dijkstra(startId, endId string) (map[string]da.Edge, bool) {
	dist := make(map[string]float64, len(rp.nodes))
	prevEdge := make(map[string]da.Edge, len(rp.nodes))
	settled := make(map[string]bool, len(rp.nodes))
	heapNodes := make(map[string]*da.PriorityQueueNode[string], len(rp.nodes))

	pq := da.NewBinaryHeap[string]()
	pq.Preallocate(len(rp.nodes))

	dist[startId] = 0
	startNode := da.NewPriorityQueueNode(0, startId)
	heapNodes[startId] = startNode
	pq.Insert(startNode)

	for !pq.IsEmpty() {
		min, err := pq.ExtractMin()
		if err != nil {
			break
		}
		uId := min.GetItem()
		if settled[uId] {
			continue
		}
		settled[uId] = true

		if uId == endId {
			return prevEdge, true
		}

		for _, e := range rp.adjacency[uId] {
			vId, ok := e.OtherEnd(uId)
			if !ok || settled[vId] {
				continue
			}

			newDist := dist[uId] + rp.edgeWeight(e)
			if newDist >= pkg.INF_WEIGHT {
				continue
			}

			vDist, labelled := dist[vId]
			if labelled && newDist >= vDist {
				// not strictly better, keep the first discovered edge
				continue
			}

			dist[vId] = newDist
			prevEdge[vId] = e
			if labelled {
				pq.DecreaseKey(heapNodes[vId], newDist)
			} else {
				vNode := da.NewPriorityQueueNode(newDist, vId)
				heapNodes[vId] = vNode
				pq.Insert(vNode)
			}
		}
	}

	return nil, false
}
