package localizer

import (
	"context"
	"math"

	"github.com/rizkia-p/wayfindr/pkg"
	"github.com/rizkia-p/wayfindr/pkg/concurrent"
	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"github.com/rizkia-p/wayfindr/pkg/vlm"
	"go.uber.org/zap"
)

// EmbeddingService is the slice of the embedding gateway the localizer needs.
type EmbeddingService interface {
	Encode(ctx context.Context, image []byte) (datastructure.Vector, error)
	EncodeNavigation(ctx context.Context, image []byte, inpaintPersons bool) (datastructure.Vector, error)
	DetectPersons(ctx context.Context, image []byte) (int, []float64, error)
}

// VisionComparer is the secondary confirmation stage.
type VisionComparer interface {
	Compare(ctx context.Context, liveFrame, reference []byte) (vlm.Comparison, error)
}

// TopKSearcher candidate pre-ranking pushed down to the store. the postgres
// store ranks in the database via pgvector; stores without it fall back to
// the in-process scan.
type TopKSearcher interface {
	TopKReferences(ctx context.Context, orgId string, query datastructure.Vector,
		k int) ([]mapstore.Reference, []float64, error)
}

type Config struct {
	MinConfidence          float64
	VLMCandidateSimilarity float64
	VLMAcceptConfidence    float64
	EmbeddingBlendWeight   float64
	CleanSceneThreshold    float64
	CrowdedRelaxation      float64
	PreTurnBonus           float64
	ScanWorkers            int
	TopKCandidates         int
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:          pkg.DEFAULT_MATCH_CONFIDENCE_MIN,
		VLMCandidateSimilarity: pkg.DEFAULT_VLM_CANDIDATE_SIMILARITY,
		VLMAcceptConfidence:    pkg.DEFAULT_VLM_ACCEPT_CONFIDENCE,
		EmbeddingBlendWeight:   pkg.DEFAULT_EMBEDDING_BLEND_WEIGHT,
		CleanSceneThreshold:    pkg.DEFAULT_CLEAN_SCENE_THRESHOLD,
		CrowdedRelaxation:      pkg.DEFAULT_CROWDED_SCENE_RELAXATION,
		PreTurnBonus:           pkg.DEFAULT_PRE_TURN_THRESHOLD_BONUS,
		ScanWorkers:            4,
		TopKCandidates:         pkg.DEFAULT_TOPK_CANDIDATES,
	}
}

// Localizer turns a captured image into a location hypothesis by comparing
// its embedding against every stored reference of the caller's organization.
type Localizer struct {
	log      *zap.Logger
	embedder EmbeddingService
	comparer VisionComparer
	store    mapstore.Store
	orgId    string
	cfg      Config
}

func New(log *zap.Logger, embedder EmbeddingService, comparer VisionComparer,
	store mapstore.Store, orgId string, cfg Config) *Localizer {
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 4
	}
	if cfg.TopKCandidates <= 0 {
		cfg.TopKCandidates = pkg.DEFAULT_TOPK_CANDIDATES
	}
	return &Localizer{
		log:      log,
		embedder: embedder,
		comparer: comparer,
		store:    store,
		orgId:    orgId,
		cfg:      cfg,
	}
}

// embedOrZero. embedding service failures degrade to the zero vector, which
// scores similarity 0 against everything and therefore falls out as no-match
// instead of an error.
func (l *Localizer) embedOrZero(ctx context.Context, image []byte) datastructure.Vector {
	vec, err := l.embedder.Encode(ctx, image)
	if err != nil {
		l.log.Warn("embedding extraction failed, substituting zero vector", zap.Error(err))
		return datastructure.ZeroVector(0)
	}
	return vec
}

// similarityToConfidence concave curve so moderate similarities are not
// over-penalized. clamped to [0,1]; negative similarity maps to 0.
func similarityToConfidence(similarity float64) float64 {
	if similarity <= 0 {
		return 0
	}
	return util.Clamp01(math.Sqrt(similarity))
}

type scanJob struct {
	idx int
	ref mapstore.Reference
}

type scanResult struct {
	idx        int
	similarity float64
	skipped    bool
}

// scan rank every reference against query. the cosine scans fan out over the
// worker pool; references with a mismatched embedding dimension are skipped
// with a log entry rather than aborting the pass.
func (l *Localizer) scan(refs []mapstore.Reference, query datastructure.Vector) []scanResult {
	pool := concurrent.NewWorkerPool[scanJob, scanResult](l.cfg.ScanWorkers, len(refs))
	pool.Start(func(job scanJob) scanResult {
		if query.Dim() == 0 || job.ref.Embedding.Dim() != query.Dim() {
			return scanResult{idx: job.idx, skipped: true}
		}
		return scanResult{
			idx:        job.idx,
			similarity: datastructure.CosineSimilarity(query, job.ref.Embedding),
		}
	})

	for i, ref := range refs {
		pool.AddJob(scanJob{idx: i, ref: ref})
	}
	pool.Close()
	pool.Wait()

	results := make([]scanResult, 0, len(refs))
	for res := range pool.CollectResults() {
		if res.skipped && query.Dim() != 0 {
			l.log.Warn("skipping reference with mismatched embedding dimension",
				zap.String("refId", refs[res.idx].Id),
				zap.Int("refDim", refs[res.idx].Embedding.Dim()),
				zap.Int("queryDim", query.Dim()))
		}
		results = append(results, res)
	}
	return results
}

// rank candidate references against the query. when the store can rank in the
// database (pgvector) only the top K come back; otherwise every reference is
// fetched and scanned in-process.
func (l *Localizer) rank(ctx context.Context, query datastructure.Vector) ([]mapstore.Reference, []scanResult, error) {
	if searcher, ok := l.store.(TopKSearcher); ok && query.Dim() > 0 {
		refs, sims, err := searcher.TopKReferences(ctx, l.orgId, query, l.cfg.TopKCandidates)
		if err == nil {
			results := make([]scanResult, len(refs))
			for i := range refs {
				results[i] = scanResult{idx: i, similarity: sims[i]}
			}
			return refs, results, nil
		}
		l.log.Warn("database candidate ranking failed, falling back to full scan", zap.Error(err))
	}

	refs, err := l.store.GetReferences(ctx, l.orgId)
	if err != nil {
		return nil, nil, err
	}
	return refs, l.scan(refs, query), nil
}

func best(results []scanResult) (scanResult, bool) {
	found := false
	var top scanResult
	for _, r := range results {
		if r.skipped {
			continue
		}
		if !found || r.similarity > top.similarity {
			top = r
			found = true
		}
	}
	return top, found
}

// Localize single-frame localization. returns ok=false when nothing clears
// the minimum confidence threshold.
func (l *Localizer) Localize(ctx context.Context, image []byte) (datastructure.LocationMatch, bool, error) {
	query := l.embedOrZero(ctx, image)
	return l.localizeVector(ctx, query)
}

// LocalizeMulti average several embeddings (e.g. a rotate-in-place scan)
// component-wise before comparing; smooths single-frame noise.
func (l *Localizer) LocalizeMulti(ctx context.Context, images [][]byte) (datastructure.LocationMatch, bool, error) {
	vectors := make([]datastructure.Vector, 0, len(images))
	for _, img := range images {
		vec, err := l.embedder.Encode(ctx, img)
		if err != nil {
			l.log.Warn("dropping failed sample from multi-frame localization", zap.Error(err))
			continue
		}
		vectors = append(vectors, vec)
	}

	if len(vectors) == 0 {
		return l.localizeVector(ctx, datastructure.ZeroVector(0))
	}

	mean, err := datastructure.MeanVector(vectors)
	if err != nil {
		l.log.Warn("multi-frame mean failed, substituting zero vector", zap.Error(err))
		mean = datastructure.ZeroVector(0)
	}
	return l.localizeVector(ctx, mean)
}

func (l *Localizer) localizeVector(ctx context.Context, query datastructure.Vector) (datastructure.LocationMatch, bool, error) {
	refs, results, err := l.rank(ctx, query)
	if err != nil {
		return datastructure.LocationMatch{}, false, err
	}
	if len(refs) == 0 {
		return datastructure.LocationMatch{}, false, nil
	}

	top, found := best(results)
	if !found {
		return datastructure.LocationMatch{}, false, nil
	}

	confidence := similarityToConfidence(top.similarity)
	if confidence < l.cfg.MinConfidence {
		return datastructure.LocationMatch{}, false, nil
	}

	ref := refs[top.idx]
	return datastructure.NewLocationMatch(ref.Id, ref.Name, top.similarity,
		confidence, ref.MapId), true, nil
}

// LocalizeEnhanced adds the vision-language confirmation stage: candidates
// whose raw similarity clears the stricter bar are compared against their
// stored reference image, only confirmed ones survive, and the final ranking
// score is a fixed weighted blend of embedding similarity and confirmation
// confidence.
func (l *Localizer) LocalizeEnhanced(ctx context.Context, image []byte) (datastructure.LocationMatch, bool, error) {
	query := l.embedOrZero(ctx, image)

	refs, results, err := l.rank(ctx, query)
	if err != nil {
		return datastructure.LocationMatch{}, false, err
	}
	if len(refs) == 0 {
		return datastructure.LocationMatch{}, false, nil
	}

	bestScore := -1.0
	var bestMatch datastructure.LocationMatch
	for i, r := range results {
		if util.StopConcurrentOperation(ctx) {
			return datastructure.LocationMatch{}, false, ctx.Err()
		}
		if r.skipped || r.similarity <= l.cfg.VLMCandidateSimilarity {
			continue
		}
		ref := refs[r.idx]

		refImage, err := l.store.GetReferenceImage(ctx, ref.Id)
		if err != nil {
			l.log.Warn("reference image unavailable, skipping confirmation candidate",
				zap.String("refId", ref.Id), zap.Error(err))
			continue
		}

		cmp, err := l.comparer.Compare(ctx, image, refImage)
		if err != nil {
			// a failed confirmation call is a failed candidate, not a fatal error
			l.log.Warn("vision-language confirmation failed",
				zap.String("refId", ref.Id), zap.Error(err))
			continue
		}
		if !cmp.Match || cmp.Confidence < l.cfg.VLMAcceptConfidence {
			// an explicit rejection also disqualifies the candidate from the
			// embedding-only fallback; a failed compare call does not
			results[i].skipped = true
			continue
		}

		score := l.cfg.EmbeddingBlendWeight*r.similarity +
			(1-l.cfg.EmbeddingBlendWeight)*(cmp.Confidence/100.0)
		if score > bestScore {
			bestScore = score
			bestMatch = datastructure.NewLocationMatch(ref.Id, ref.Name, r.similarity,
				util.Clamp01(score), ref.MapId)
		}
	}

	if bestScore < 0 {
		// nothing confirmed, fall back to the plain embedding decision among
		// the candidates the confirmation stage did not reject
		top, found := best(results)
		if !found {
			return datastructure.LocationMatch{}, false, nil
		}
		confidence := similarityToConfidence(top.similarity)
		if confidence < l.cfg.MinConfidence {
			return datastructure.LocationMatch{}, false, nil
		}
		ref := refs[top.idx]
		return datastructure.NewLocationMatch(ref.Id, ref.Name, top.similarity,
			confidence, ref.MapId), true, nil
	}
	return bestMatch, true, nil
}
