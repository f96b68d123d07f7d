package usecases

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/deadreckoning"
	"github.com/rizkia-p/wayfindr/pkg/engine/navigation"
	"github.com/rizkia-p/wayfindr/pkg/localizer"
	"github.com/rizkia-p/wayfindr/pkg/planner"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"
)

// NavigationService backs both the REST API and the websocket navigation
// sessions. the planner, localizer and spatial index are shared; each live
// session gets its own estimator and engine.
type NavigationService struct {
	log          *zap.Logger
	planner      *planner.RoutePlanner
	localizer    *localizer.Localizer
	spatialIndex SpatialIndex
	resolver     navigation.PathResolver

	engineCfg navigation.Config
	drCfg     deadreckoning.Config
}

func NewNavigationService(log *zap.Logger, rp *planner.RoutePlanner,
	loc *localizer.Localizer, spatialIndex SpatialIndex,
	resolver navigation.PathResolver, engineCfg navigation.Config,
	drCfg deadreckoning.Config) *NavigationService {
	return &NavigationService{
		log:          log,
		planner:      rp,
		localizer:    loc,
		spatialIndex: spatialIndex,
		resolver:     resolver,
		engineCfg:    engineCfg,
		drCfg:        drCfg,
	}
}

// PlanRoute shortest route between two nodes plus the encoded coordinate
// polyline of the walked path.
func (ns *NavigationService) PlanRoute(startId, destinationId string) (datastructure.Route, string, error) {
	route, err := ns.planner.FindRoute(startId, destinationId)
	if err != nil {
		return datastructure.Route{}, "", err
	}
	return route, routePolyline(route), nil
}

// routePolyline encode the chain of node coordinates. coordinates are planar
// meters, the encoding is only a compact transport format.
func routePolyline(route datastructure.Route) string {
	steps := route.GetSteps()
	if len(steps) == 0 {
		return ""
	}

	coords := make([][]float64, 0, len(steps)+1)
	first := steps[0].GetFrom().GetCoord()
	coords = append(coords, []float64{first.Y, first.X})
	for _, s := range steps {
		p := s.GetTo().GetCoord()
		coords = append(coords, []float64{p.Y, p.X})
	}
	return string(polyline.EncodeCoords(coords))
}

func (ns *NavigationService) Destinations(excludingId string) []datastructure.Node {
	return ns.planner.AllDestinations(excludingId)
}

func (ns *NavigationService) NearbyNodes(x, y, radius float64) []datastructure.Node {
	return ns.spatialIndex.SearchWithinRadius(x, y, radius)
}

// Localize single-frame localization, optionally with the vision-language
// confirmation stage.
func (ns *NavigationService) Localize(ctx context.Context, image []byte, enhanced bool) (datastructure.LocationMatch, bool, error) {
	if enhanced {
		return ns.localizer.LocalizeEnhanced(ctx, image)
	}
	return ns.localizer.Localize(ctx, image)
}

// LocalizeMulti rotate-in-place scan localization.
func (ns *NavigationService) LocalizeMulti(ctx context.Context, images [][]byte) (datastructure.LocationMatch, bool, error) {
	return ns.localizer.LocalizeMulti(ctx, images)
}

// NewSessionEngine per-session navigation engine with a fresh dead-reckoning
// estimator.
func (ns *NavigationService) NewSessionEngine(camera navigation.CaptureFunc) *navigation.Engine {
	est := deadreckoning.NewEstimator(ns.log, ns.drCfg)
	return navigation.NewEngine(ns.log, ns.planner, ns.localizer, est,
		ns.resolver, snapperAdapter{ns.spatialIndex}, camera, ns.engineCfg)
}

type snapperAdapter struct {
	index SpatialIndex
}

func (s snapperAdapter) Nearest(x, y float64) (datastructure.Node, bool) {
	return s.index.Nearest(x, y)
}
