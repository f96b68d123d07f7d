package controllers

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/engine/navigation"
)

type NavigationService interface {
	PlanRoute(startId, destinationId string) (datastructure.Route, string, error)
	Destinations(excludingId string) []datastructure.Node
	NearbyNodes(x, y, radius float64) []datastructure.Node
	Localize(ctx context.Context, image []byte, enhanced bool) (datastructure.LocationMatch, bool, error)
	LocalizeMulti(ctx context.Context, images [][]byte) (datastructure.LocationMatch, bool, error)
	NewSessionEngine(camera navigation.CaptureFunc) *navigation.Engine
}
