package usecases

import (
	"context"
	"errors"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

// EdgePathResolver stitches the recorded per-edge waypoint paths of a route
// into one session path. sequence numbers are re-based per edge so the merged
// path stays strictly increasing even when recordings were pruned.
type EdgePathResolver struct {
	store mapstore.Store
	log   *zap.Logger
}

func NewEdgePathResolver(store mapstore.Store, log *zap.Logger) *EdgePathResolver {
	return &EdgePathResolver{store: store, log: log}
}

func (r *EdgePathResolver) ResolvePath(ctx context.Context, route datastructure.Route) (datastructure.WaypointPath, error) {
	merged := make([]datastructure.Waypoint, 0)
	nextBase := 0

	for _, step := range route.GetSteps() {
		edgePath, err := r.store.GetWaypointPath(ctx, step.GetEdge().GetId())
		if err != nil {
			var werr *util.Error
			if errors.As(err, &werr) && errors.Is(werr.Code(), util.ErrNotFound) {
				// not every edge has a recorded walk, guidance falls back to
				// the generated step instruction there
				r.log.Warn("edge has no recorded waypoint path",
					zap.String("edgeId", step.GetEdge().GetId()))
				continue
			}
			return datastructure.WaypointPath{}, err
		}

		maxSeq := nextBase
		for _, w := range edgePath.GetWaypoints() {
			seq := nextBase + w.GetSeq()
			if seq > maxSeq {
				maxSeq = seq
			}
			merged = append(merged, datastructure.NewWaypoint(
				w.GetId(), w.GetEmbedding(), w.GetHeading(), w.GetHeadingDelta(),
				w.GetTurn(), w.IsDecisionPoint(), w.GetLandmark(), w.GetDistFromPrev(),
				w.GetRecordedAt(), seq))
		}
		nextBase = maxSeq + 1
	}

	if len(merged) == 0 {
		return datastructure.WaypointPath{}, util.WrapErrorf(nil, util.ErrNotFound,
			"route has no recorded waypoints")
	}
	return datastructure.NewWaypointPath(merged), nil
}
