package mapstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/geo/r2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

// PostgresStore. multi-tenant map store on postgres with the pgvector
// extension; reference embeddings live in a vector column so candidate
// pre-ranking can happen in the database.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetNodes(ctx context.Context, orgId string) ([]datastructure.Node, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(description, ''), x, y, floor, COALESCE(metadata, '{}'::jsonb)
		 FROM map_nodes WHERE org_id = $1`, orgId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]datastructure.Node, 0)
	for rows.Next() {
		var (
			id, name, description string
			x, y                  float64
			floor                 int
			metadataRaw           []byte
		)
		if err := rows.Scan(&id, &name, &description, &x, &y, &floor, &metadataRaw); err != nil {
			return nil, err
		}

		metadata := map[string]string{}
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			// malformed metadata must not abort the whole load
			s.log.Warn("skipping malformed node metadata", zap.String("nodeId", id), zap.Error(err))
			metadata = map[string]string{}
		}
		nodes = append(nodes, datastructure.NewNode(id, name, description,
			r2.Point{X: x, Y: y}, floor, metadata))
	}
	return nodes, rows.Err()
}

func (s *PostgresStore) GetEdges(ctx context.Context, orgId string) ([]datastructure.Edge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, from_node, to_node, distance, step_count, avg_heading,
		        COALESCE(instruction, ''), COALESCE(landmarks, '[]'::jsonb)
		 FROM map_edges WHERE org_id = $1 ORDER BY created_at`, orgId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]datastructure.Edge, 0)
	for rows.Next() {
		var (
			id, fromNode, toNode string
			distance, avgHeading *float64
			stepCount            *int
			instruction          string
			landmarksRaw         []byte
		)
		if err := rows.Scan(&id, &fromNode, &toNode, &distance, &stepCount,
			&avgHeading, &instruction, &landmarksRaw); err != nil {
			return nil, err
		}

		e := datastructure.NewEdge(id, fromNode, toNode)
		if distance != nil {
			e = e.WithDistance(*distance)
		}
		if stepCount != nil {
			e = e.WithStepCount(*stepCount)
		}
		if avgHeading != nil {
			e = e.WithAvgHeading(*avgHeading)
		}
		if instruction != "" {
			e = e.WithInstruction(instruction)
		}

		var lms []bundleLandmark
		if err := json.Unmarshal(landmarksRaw, &lms); err != nil {
			s.log.Warn("skipping malformed edge landmarks", zap.String("edgeId", id), zap.Error(err))
		} else if len(lms) > 0 {
			landmarks := make([]datastructure.Landmark, 0, len(lms))
			for _, lm := range lms {
				landmarks = append(landmarks, datastructure.NewLandmark(lm.Kind, parseSide(lm.Side)))
			}
			e = e.WithLandmarks(landmarks...)
		}

		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *PostgresStore) GetReferences(ctx context.Context, orgId string) ([]Reference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, map_id, embedding FROM location_references WHERE org_id = $1`, orgId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]Reference, 0)
	for rows.Next() {
		var (
			id, name, mapId string
			emb             pgvector.Vector
		)
		if err := rows.Scan(&id, &name, &mapId, &emb); err != nil {
			return nil, err
		}
		refs = append(refs, Reference{
			Id:        id,
			Name:      name,
			MapId:     mapId,
			Embedding: datastructure.Vector(emb.Slice()),
		})
	}
	return refs, rows.Err()
}

// TopKReferences candidate pre-ranking in the database.
// cosine distance in pgvector is 1 - cosine_similarity, so
// 1 - (embedding <=> query) recovers the similarity.
func (s *PostgresStore) TopKReferences(ctx context.Context, orgId string,
	query datastructure.Vector, k int) ([]Reference, []float64, error) {

	queryVector := pgvector.NewVector([]float32(query))
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, map_id, embedding, 1 - (embedding <=> $2) AS similarity
		 FROM location_references WHERE org_id = $1
		 ORDER BY embedding <=> $2 LIMIT $3`, orgId, queryVector, k)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	refs := make([]Reference, 0, k)
	sims := make([]float64, 0, k)
	for rows.Next() {
		var (
			id, name, mapId string
			emb             pgvector.Vector
			similarity      float64
		)
		if err := rows.Scan(&id, &name, &mapId, &emb, &similarity); err != nil {
			return nil, nil, err
		}
		refs = append(refs, Reference{
			Id:        id,
			Name:      name,
			MapId:     mapId,
			Embedding: datastructure.Vector(emb.Slice()),
		})
		sims = append(sims, similarity)
	}
	return refs, sims, rows.Err()
}

func (s *PostgresStore) GetReferenceImage(ctx context.Context, refId string) ([]byte, error) {
	var image []byte
	err := s.pool.QueryRow(ctx,
		`SELECT image FROM location_references WHERE id = $1`, refId).Scan(&image)
	if err == pgx.ErrNoRows || (err == nil && len(image) == 0) {
		return nil, util.WrapErrorf(err, util.ErrNotFound, "no reference image for %q", refId)
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (s *PostgresStore) GetWaypointPath(ctx context.Context, pathId string) (datastructure.WaypointPath, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, embedding, heading, heading_delta, turn, decision_point,
		        COALESCE(landmark, ''), dist_from_prev, recorded_at, seq
		 FROM waypoints WHERE path_id = $1 ORDER BY seq`, pathId)
	if err != nil {
		return datastructure.WaypointPath{}, err
	}
	defer rows.Close()

	waypoints := make([]datastructure.Waypoint, 0)
	for rows.Next() {
		var (
			id, turn, landmark    string
			emb                   pgvector.Vector
			heading, headingDelta float64
			decisionPoint         bool
			distFromPrev          float64
			recordedAt            time.Time
			seq                   int
		)
		if err := rows.Scan(&id, &emb, &heading, &headingDelta, &turn,
			&decisionPoint, &landmark, &distFromPrev, &recordedAt, &seq); err != nil {
			return datastructure.WaypointPath{}, err
		}
		waypoints = append(waypoints, datastructure.NewWaypoint(id,
			datastructure.Vector(emb.Slice()), heading, headingDelta,
			parseTurnKind(turn), decisionPoint, landmark, distFromPrev, recordedAt, seq))
	}
	if err := rows.Err(); err != nil {
		return datastructure.WaypointPath{}, err
	}
	if len(waypoints) == 0 {
		return datastructure.WaypointPath{}, util.WrapErrorf(nil, util.ErrNotFound,
			"no waypoint path %q", pathId)
	}
	return datastructure.NewWaypointPath(waypoints), nil
}
