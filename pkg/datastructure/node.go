package datastructure

import (
	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg"
)

// Node. a named location in the building graph. created by the map store,
// read-only for the duration of a navigation session.
type Node struct {
	id          string
	name        string
	description string
	coord       r2.Point
	floor       int
	metadata    map[string]string
}

func NewNode(id, name, description string, coord r2.Point, floor int,
	metadata map[string]string) Node {
	return Node{
		id:          id,
		name:        name,
		description: description,
		coord:       coord,
		floor:       floor,
		metadata:    metadata,
	}
}

func (n Node) GetId() string {
	return n.id
}

func (n Node) GetName() string {
	return n.name
}

func (n Node) GetDescription() string {
	return n.description
}

func (n Node) GetCoord() r2.Point {
	return n.coord
}

func (n Node) GetFloor() int {
	return n.floor
}

func (n Node) GetMetadata(key string) (string, bool) {
	v, ok := n.metadata[key]
	return v, ok
}

// Landmark. a physical feature near an edge used to phrase guidance
// ("the vending machines on your right").
type Landmark struct {
	kind string
	side pkg.LandmarkSide
}

func NewLandmark(kind string, side pkg.LandmarkSide) Landmark {
	return Landmark{kind: kind, side: side}
}

func (l Landmark) GetKind() string {
	return l.kind
}

func (l Landmark) GetSide() pkg.LandmarkSide {
	return l.side
}

// Edge. an undirected connection between two nodes. distance, step count and
// average heading are optional measurements recorded while the connection was
// walked; a negative value means not measured.
type Edge struct {
	id          string
	fromId      string
	toId        string
	distance    float64
	stepCount   int
	avgHeading  float64
	hasHeading  bool
	instruction string
	landmarks   []Landmark
}

func NewEdge(id, fromId, toId string) Edge {
	return Edge{
		id:        id,
		fromId:    fromId,
		toId:      toId,
		distance:  -1,
		stepCount: -1,
	}
}

func (e Edge) GetId() string {
	return e.id
}

func (e Edge) GetFromId() string {
	return e.fromId
}

func (e Edge) GetToId() string {
	return e.toId
}

// OtherEnd. the node id on the opposite side of nodeId. edges are undirected.
func (e Edge) OtherEnd(nodeId string) (string, bool) {
	switch nodeId {
	case e.fromId:
		return e.toId, true
	case e.toId:
		return e.fromId, true
	}
	return "", false
}

func (e Edge) WithDistance(meter float64) Edge {
	e.distance = meter
	return e
}

func (e Edge) WithStepCount(steps int) Edge {
	e.stepCount = steps
	return e
}

func (e Edge) WithAvgHeading(deg float64) Edge {
	e.avgHeading = deg
	e.hasHeading = true
	return e
}

func (e Edge) WithInstruction(text string) Edge {
	e.instruction = text
	return e
}

func (e Edge) WithLandmarks(landmarks ...Landmark) Edge {
	e.landmarks = landmarks
	return e
}

func (e Edge) HasMeasuredDistance() bool {
	return e.distance >= 0
}

func (e Edge) GetMeasuredDistance() float64 {
	return e.distance
}

func (e Edge) HasStepCount() bool {
	return e.stepCount >= 0
}

func (e Edge) GetStepCount() int {
	return e.stepCount
}

func (e Edge) GetAvgHeading() (float64, bool) {
	return e.avgHeading, e.hasHeading
}

func (e Edge) GetCustomInstruction() string {
	return e.instruction
}

func (e Edge) GetLandmarks() []Landmark {
	return e.landmarks
}
