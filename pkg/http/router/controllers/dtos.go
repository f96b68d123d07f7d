package controllers

import (
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/engine/navigation"
)

type planRouteRequest struct {
	StartId       string `json:"start_id" validate:"required"`
	DestinationId string `json:"destination_id" validate:"required"`
}

type landmarkResponse struct {
	Kind string `json:"kind"`
	Side string `json:"side"`
}

func newLandmarkResponses(landmarks []datastructure.Landmark) []landmarkResponse {
	out := make([]landmarkResponse, 0, len(landmarks))
	for _, l := range landmarks {
		out = append(out, landmarkResponse{Kind: l.GetKind(), Side: l.GetSide().String()})
	}
	return out
}

type stepResponse struct {
	FromId      string             `json:"from_id"`
	FromName    string             `json:"from_name"`
	ToId        string             `json:"to_id"`
	ToName      string             `json:"to_name"`
	Instruction string             `json:"instruction"`
	Heading     float64            `json:"heading"`
	Distance    float64            `json:"distance"`
	StepCount   int                `json:"step_count"`
	Landmarks   []landmarkResponse `json:"landmarks,omitempty"`
}

type planRouteResponse struct {
	Steps         []stepResponse `json:"steps"`
	TotalDistance float64        `json:"total_distance"`
	Path          string         `json:"path"`
}

func NewPlanRouteResponse(route datastructure.Route, pathPolyline string) planRouteResponse {
	steps := make([]stepResponse, 0, route.NumSteps())
	for _, s := range route.GetSteps() {
		steps = append(steps, stepResponse{
			FromId:      s.GetFrom().GetId(),
			FromName:    s.GetFrom().GetName(),
			ToId:        s.GetTo().GetId(),
			ToName:      s.GetTo().GetName(),
			Instruction: s.GetInstruction(),
			Heading:     s.GetHeading(),
			Distance:    s.GetDistance(),
			StepCount:   s.GetStepCount(),
			Landmarks:   newLandmarkResponses(s.GetLandmarks()),
		})
	}
	return planRouteResponse{
		Steps:         steps,
		TotalDistance: route.GetTotalDistance(),
		Path:          pathPolyline,
	}
}

type nodeResponse struct {
	Id          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Floor       int     `json:"floor"`
}

func NewNodeResponses(nodes []datastructure.Node) []nodeResponse {
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeResponse{
			Id:          n.GetId(),
			Name:        n.GetName(),
			Description: n.GetDescription(),
			X:           n.GetCoord().X,
			Y:           n.GetCoord().Y,
			Floor:       n.GetFloor(),
		})
	}
	return out
}

type locationMatchResponse struct {
	Id         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
	MapId      string  `json:"map_id,omitempty"`
	Matched    bool    `json:"matched"`
}

func NewLocationMatchResponse(match datastructure.LocationMatch, matched bool) locationMatchResponse {
	return locationMatchResponse{
		Id:         match.GetId(),
		Name:       match.GetName(),
		Similarity: match.GetSimilarity(),
		Confidence: match.GetConfidence(),
		MapId:      match.GetMapId(),
		Matched:    matched,
	}
}

type instructionResponse struct {
	Text          string  `json:"text"`
	Kind          string  `json:"kind"`
	TargetHeading float64 `json:"target_heading"`
	WaypointSeq   int     `json:"waypoint_seq"`
	Passed        int     `json:"passed"`
	Total         int     `json:"total"`
}

func NewInstructionResponse(in navigation.Instruction) instructionResponse {
	return instructionResponse{
		Text:          in.Text,
		Kind:          in.Kind.String(),
		TargetHeading: in.TargetHeading,
		WaypointSeq:   in.Progress.WaypointSeq,
		Passed:        in.Progress.Passed,
		Total:         in.Progress.Total,
	}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
