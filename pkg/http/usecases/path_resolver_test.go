package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resolverRoute() datastructure.Route {
	a := datastructure.NewNode("a", "A", "", r2.Point{X: 0, Y: 0}, 0, nil)
	b := datastructure.NewNode("b", "B", "", r2.Point{X: 0, Y: 10}, 0, nil)
	c := datastructure.NewNode("c", "C", "", r2.Point{X: 10, Y: 10}, 0, nil)

	return datastructure.NewRoute([]datastructure.Step{
		datastructure.NewStep(a, b, datastructure.NewEdge("e1", "a", "b"), "", 0, 10, 14, nil),
		datastructure.NewStep(b, c, datastructure.NewEdge("e2", "b", "c"), "", 90, 10, 14, nil),
	})
}

func waypoint(id string, seq int) datastructure.Waypoint {
	return datastructure.NewWaypoint(id, datastructure.Vector{1, 0}, 0, 0,
		pkg.STRAIGHT_ON, false, "", 0, time.Now(), seq)
}

func TestResolvePathStitchesEdgeRecordings(t *testing.T) {
	store := mapstore.NewMemoryStore()
	// e1 recording has a pruned hole (0, 3); e2 starts over at 0
	store.SetWaypointPath("e1", datastructure.NewWaypointPath([]datastructure.Waypoint{
		waypoint("a0", 0), waypoint("a3", 3),
	}))
	store.SetWaypointPath("e2", datastructure.NewWaypointPath([]datastructure.Waypoint{
		waypoint("b0", 0), waypoint("b1", 1),
	}))

	resolver := NewEdgePathResolver(store, zap.NewNop())
	path, err := resolver.ResolvePath(context.Background(), resolverRoute())
	require.NoError(t, err)
	require.Equal(t, 4, path.Len())

	// merged sequence numbers stay strictly increasing across edges
	wps := path.GetWaypoints()
	for i := 1; i < len(wps); i++ {
		assert.Greater(t, wps[i].GetSeq(), wps[i-1].GetSeq())
	}

	// e2's recording is re-based after e1's highest seq
	first, _ := path.FirstSeq()
	assert.Equal(t, 0, first)
	b0, ok := path.BySeq(4)
	require.True(t, ok)
	assert.Equal(t, "b0", b0.GetId())
}

func TestResolvePathSkipsUnrecordedEdges(t *testing.T) {
	store := mapstore.NewMemoryStore()
	store.SetWaypointPath("e2", datastructure.NewWaypointPath([]datastructure.Waypoint{
		waypoint("b0", 0),
	}))

	resolver := NewEdgePathResolver(store, zap.NewNop())
	path, err := resolver.ResolvePath(context.Background(), resolverRoute())
	require.NoError(t, err)
	assert.Equal(t, 1, path.Len(), "the unrecorded edge contributes nothing")
}

func TestResolvePathNoRecordingsAnywhere(t *testing.T) {
	resolver := NewEdgePathResolver(mapstore.NewMemoryStore(), zap.NewNop())
	_, err := resolver.ResolvePath(context.Background(), resolverRoute())
	assert.Error(t, err, "a route without any recorded waypoints cannot drive visual guidance")
}
