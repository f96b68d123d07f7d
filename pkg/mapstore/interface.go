package mapstore

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
)

// Reference. one stored visual anchor: a named location with its reference
// embedding, owned by a map. the reference image itself is fetched lazily,
// it is only needed when a match escalates to vision-language confirmation.
type Reference struct {
	Id        string
	Name      string
	Embedding datastructure.Vector
	MapId     string
}

// Store supplies building graphs, reference embeddings and recorded waypoint
// paths, scoped to the requesting organization. read-heavy and assumed
// consistent for the duration of a navigation session.
type Store interface {
	GetNodes(ctx context.Context, orgId string) ([]datastructure.Node, error)
	GetEdges(ctx context.Context, orgId string) ([]datastructure.Edge, error)
	GetReferences(ctx context.Context, orgId string) ([]Reference, error)
	GetReferenceImage(ctx context.Context, refId string) ([]byte, error)
	GetWaypointPath(ctx context.Context, pathId string) (datastructure.WaypointPath, error)
}
