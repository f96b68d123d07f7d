package mapstore

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/util"
)

// MemoryStore. map data held in process memory; backs single-tenant
// deployments loading a bundle file, and every test.
type MemoryStore struct {
	nodes      map[string][]datastructure.Node
	edges      map[string][]datastructure.Edge
	references map[string][]Reference
	images     map[string][]byte
	paths      map[string]datastructure.WaypointPath
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:      make(map[string][]datastructure.Node),
		edges:      make(map[string][]datastructure.Edge),
		references: make(map[string][]Reference),
		images:     make(map[string][]byte),
		paths:      make(map[string]datastructure.WaypointPath),
	}
}

func (s *MemoryStore) SetGraph(orgId string, nodes []datastructure.Node, edges []datastructure.Edge) {
	s.nodes[orgId] = nodes
	s.edges[orgId] = edges
}

func (s *MemoryStore) SetReferences(orgId string, refs []Reference) {
	s.references[orgId] = refs
}

func (s *MemoryStore) SetReferenceImage(refId string, image []byte) {
	s.images[refId] = image
}

func (s *MemoryStore) SetWaypointPath(pathId string, path datastructure.WaypointPath) {
	s.paths[pathId] = path
}

func (s *MemoryStore) GetNodes(_ context.Context, orgId string) ([]datastructure.Node, error) {
	return s.nodes[orgId], nil
}

func (s *MemoryStore) GetEdges(_ context.Context, orgId string) ([]datastructure.Edge, error) {
	return s.edges[orgId], nil
}

func (s *MemoryStore) GetReferences(_ context.Context, orgId string) ([]Reference, error) {
	return s.references[orgId], nil
}

func (s *MemoryStore) GetReferenceImage(_ context.Context, refId string) ([]byte, error) {
	img, ok := s.images[refId]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound,
			"no reference image for %q", refId)
	}
	return img, nil
}

func (s *MemoryStore) GetWaypointPath(_ context.Context, pathId string) (datastructure.WaypointPath, error) {
	path, ok := s.paths[pathId]
	if !ok {
		return datastructure.WaypointPath{}, util.WrapErrorf(nil, util.ErrNotFound,
			"no waypoint path %q", pathId)
	}
	return path, nil
}
