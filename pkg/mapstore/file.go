package mapstore

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
)

// bundle file. a whole organization's map data (graph, references, recorded
// waypoint paths) in one bzip2-compressed json file, for deployments that run
// without the postgres store.

type bundleNode struct {
	Id          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Floor       int               `json:"floor"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type bundleLandmark struct {
	Kind string `json:"kind"`
	Side string `json:"side"`
}

type bundleEdge struct {
	Id          string           `json:"id"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Distance    *float64         `json:"distance,omitempty"`
	StepCount   *int             `json:"stepCount,omitempty"`
	AvgHeading  *float64         `json:"avgHeading,omitempty"`
	Instruction string           `json:"instruction,omitempty"`
	Landmarks   []bundleLandmark `json:"landmarks,omitempty"`
}

type bundleReference struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	MapId     string    `json:"mapId"`
	Embedding []float32 `json:"embedding"`
}

type bundleWaypoint struct {
	Id            string    `json:"id"`
	Embedding     []float32 `json:"embedding"`
	Heading       float64   `json:"heading"`
	HeadingDelta  float64   `json:"headingDelta"`
	Turn          string    `json:"turn"`
	DecisionPoint bool      `json:"decisionPoint"`
	Landmark      string    `json:"landmark,omitempty"`
	DistFromPrev  float64   `json:"distFromPrev"`
	RecordedAt    time.Time `json:"recordedAt"`
	Seq           int       `json:"seq"`
}

type bundle struct {
	OrgId      string                      `json:"orgId"`
	Nodes      []bundleNode                `json:"nodes"`
	Edges      []bundleEdge                `json:"edges"`
	References []bundleReference           `json:"references"`
	Paths      map[string][]bundleWaypoint `json:"paths"`
}

// LoadBundle read a map bundle into a memory store.
func LoadBundle(filename string) (*MemoryStore, string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, "", err
	}
	defer bz.Close()

	var b bundle
	if err := json.NewDecoder(bufio.NewReader(bz)).Decode(&b); err != nil {
		return nil, "", err
	}

	store := NewMemoryStore()
	store.SetGraph(b.OrgId, bundleNodes(b.Nodes), bundleEdges(b.Edges))

	refs := make([]Reference, 0, len(b.References))
	for _, r := range b.References {
		refs = append(refs, Reference{
			Id:        r.Id,
			Name:      r.Name,
			MapId:     r.MapId,
			Embedding: datastructure.Vector(r.Embedding),
		})
	}
	store.SetReferences(b.OrgId, refs)

	for pathId, wps := range b.Paths {
		waypoints := make([]datastructure.Waypoint, 0, len(wps))
		for _, w := range wps {
			waypoints = append(waypoints, datastructure.NewWaypoint(
				w.Id, datastructure.Vector(w.Embedding), w.Heading, w.HeadingDelta,
				parseTurnKind(w.Turn), w.DecisionPoint, w.Landmark, w.DistFromPrev,
				w.RecordedAt, w.Seq))
		}
		store.SetWaypointPath(pathId, datastructure.NewWaypointPath(waypoints))
	}

	return store, b.OrgId, nil
}

// WriteBundle compress a plain json export, used by cmd/mapbundle.
func WriteBundle(filename string, raw []byte) error {
	// validate before writing, a corrupt bundle is much cheaper to reject here
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	defer bz.Close()

	w := bufio.NewWriter(bz)
	if err := json.NewEncoder(w).Encode(b); err != nil {
		return err
	}
	return w.Flush()
}

func bundleNodes(in []bundleNode) []datastructure.Node {
	nodes := make([]datastructure.Node, 0, len(in))
	for _, n := range in {
		nodes = append(nodes, datastructure.NewNode(n.Id, n.Name, n.Description,
			r2.Point{X: n.X, Y: n.Y}, n.Floor, n.Metadata))
	}
	return nodes
}

func bundleEdges(in []bundleEdge) []datastructure.Edge {
	edges := make([]datastructure.Edge, 0, len(in))
	for _, be := range in {
		e := datastructure.NewEdge(be.Id, be.From, be.To)
		if be.Distance != nil {
			e = e.WithDistance(*be.Distance)
		}
		if be.StepCount != nil {
			e = e.WithStepCount(*be.StepCount)
		}
		if be.AvgHeading != nil {
			e = e.WithAvgHeading(*be.AvgHeading)
		}
		if be.Instruction != "" {
			e = e.WithInstruction(be.Instruction)
		}
		if len(be.Landmarks) > 0 {
			landmarks := make([]datastructure.Landmark, 0, len(be.Landmarks))
			for _, lm := range be.Landmarks {
				landmarks = append(landmarks, datastructure.NewLandmark(lm.Kind, parseSide(lm.Side)))
			}
			e = e.WithLandmarks(landmarks...)
		}
		edges = append(edges, e)
	}
	return edges
}

func parseTurnKind(s string) pkg.TurnKind {
	switch s {
	case "left":
		return pkg.LEFT_TURN
	case "right":
		return pkg.RIGHT_TURN
	case "u-turn":
		return pkg.U_TURN
	case "straight":
		return pkg.STRAIGHT_ON
	default:
		return pkg.NONE
	}
}

func parseSide(s string) pkg.LandmarkSide {
	switch s {
	case "left":
		return pkg.SIDE_LEFT
	case "right":
		return pkg.SIDE_RIGHT
	default:
		return pkg.SIDE_AHEAD
	}
}
