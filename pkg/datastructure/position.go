package datastructure

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg/util"
)

// Position. a dead-reckoned or visually confirmed position estimate.
// confirmed matches always replace the whole value, never patch parts of it.
type Position struct {
	coord      r2.Point
	heading    float64
	timestamp  time.Time
	confidence float64
}

func NewPosition(coord r2.Point, heading float64, timestamp time.Time,
	confidence float64) Position {
	return Position{
		coord:      coord,
		heading:    heading,
		timestamp:  timestamp,
		confidence: util.Clamp01(confidence),
	}
}

func (p Position) GetCoord() r2.Point {
	return p.coord
}

func (p Position) GetHeading() float64 {
	return p.heading
}

func (p Position) GetTimestamp() time.Time {
	return p.timestamp
}

func (p Position) GetConfidence() float64 {
	return p.confidence
}

// LocationMatch. best candidate returned by the position localizer.
type LocationMatch struct {
	id         string
	name       string
	similarity float64
	confidence float64
	mapId      string
}

func NewLocationMatch(id, name string, similarity, confidence float64,
	mapId string) LocationMatch {
	return LocationMatch{
		id:         id,
		name:       name,
		similarity: similarity,
		confidence: util.Clamp01(confidence),
		mapId:      mapId,
	}
}

func (m LocationMatch) GetId() string {
	return m.id
}

func (m LocationMatch) GetName() string {
	return m.name
}

func (m LocationMatch) GetSimilarity() float64 {
	return m.similarity
}

func (m LocationMatch) GetConfidence() float64 {
	return m.confidence
}

func (m LocationMatch) GetMapId() string {
	return m.mapId
}
