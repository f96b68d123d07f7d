package localizer

import (
	"context"
	"errors"
	"testing"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/rizkia-p/wayfindr/pkg/vlm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder maps image bytes to canned vectors.
type fakeEmbedder struct {
	vectors map[string]datastructure.Vector
	persons map[string][]float64
	failAll bool
}

func (f *fakeEmbedder) Encode(_ context.Context, image []byte) (datastructure.Vector, error) {
	if f.failAll {
		return nil, errors.New("embedding gateway unreachable")
	}
	vec, ok := f.vectors[string(image)]
	if !ok {
		return nil, errors.New("unknown test image")
	}
	return vec, nil
}

func (f *fakeEmbedder) EncodeNavigation(ctx context.Context, image []byte, _ bool) (datastructure.Vector, error) {
	return f.Encode(ctx, image)
}

func (f *fakeEmbedder) DetectPersons(_ context.Context, image []byte) (int, []float64, error) {
	dets := f.persons[string(image)]
	return len(dets), dets, nil
}

// fakeComparer confirms reference ids present in accept.
type fakeComparer struct {
	accept map[string]float64 // reference image payload -> confidence
	err    error
	calls  int
}

func (f *fakeComparer) Compare(_ context.Context, _, reference []byte) (vlm.Comparison, error) {
	f.calls++
	if f.err != nil {
		return vlm.Comparison{}, f.err
	}
	conf, ok := f.accept[string(reference)]
	if !ok {
		return vlm.Comparison{Match: false, Confidence: 20}, nil
	}
	return vlm.Comparison{Match: true, Confidence: conf}, nil
}

func testLocalizer(t *testing.T, embedder *fakeEmbedder, comparer *fakeComparer) (*Localizer, *mapstore.MemoryStore) {
	t.Helper()
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", []mapstore.Reference{
		{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{1, 0, 0}, MapId: "hq"},
		{Id: "cafe", Name: "Cafe", Embedding: datastructure.Vector{0, 1, 0}, MapId: "hq"},
		{Id: "atrium", Name: "Atrium", Embedding: datastructure.Vector{0, 0, 1}, MapId: "hq"},
	})
	return New(zap.NewNop(), embedder, comparer, store, "org", DefaultConfig()), store
}

func TestLocalizePicksBestReference(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {0.05, 0.99, 0},
	}}
	loc, _ := testLocalizer(t, embedder, &fakeComparer{})

	match, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafe", match.GetId())
	assert.Equal(t, "hq", match.GetMapId())
	assert.Greater(t, match.GetConfidence(), 0.9)
}

func TestLocalizeEmbeddingFailureMeansNoMatch(t *testing.T) {
	embedder := &fakeEmbedder{failAll: true}
	loc, _ := testLocalizer(t, embedder, &fakeComparer{})

	_, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err, "a dead embedding service is a no-match, not an error")
	assert.False(t, ok)
}

func TestLocalizeBelowMinConfidence(t *testing.T) {
	// best similarity ~0.30 -> confidence ~0.55, below the 0.6 floor
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {0.3, 0.1, 0.1},
	}}
	cfg := DefaultConfig()
	cfg.MinConfidence = 0.99
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", []mapstore.Reference{
		{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{0, 1, 0}},
	})
	loc := New(zap.NewNop(), embedder, &fakeComparer{}, store, "org", cfg)

	_, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalizeNoReferences(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {1, 0, 0},
	}}
	store := mapstore.NewMemoryStore()
	loc := New(zap.NewNop(), embedder, &fakeComparer{}, store, "org", DefaultConfig())

	_, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalizeSkipsMismatchedDimensions(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {1, 0, 0},
	}}
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", []mapstore.Reference{
		{Id: "projected", Name: "Wrong Dim", Embedding: datastructure.Vector{1, 0}},
		{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{1, 0, 0}},
	})
	loc := New(zap.NewNop(), embedder, &fakeComparer{}, store, "org", DefaultConfig())

	match, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lobby", match.GetId())
}

func TestLocalizeMultiAveragesSamples(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"f1": {0.9, 0.1, 0},
		"f2": {1.0, 0.0, 0},
		"f3": {0.8, -0.1, 0},
	}}
	loc, _ := testLocalizer(t, embedder, &fakeComparer{})

	match, ok, err := loc.LocalizeMulti(context.Background(),
		[][]byte{[]byte("f1"), []byte("f2"), []byte("f3")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lobby", match.GetId())
}

func TestLocalizeMultiDropsFailedSamples(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"good": {0, 1, 0},
		// "bad" is absent, Encode fails for it
	}}
	loc, _ := testLocalizer(t, embedder, &fakeComparer{})

	match, ok, err := loc.LocalizeMulti(context.Background(),
		[][]byte{[]byte("bad"), []byte("good"), []byte("bad")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafe", match.GetId())
}

func TestLocalizeEnhancedBlendsConfirmation(t *testing.T) {
	// both lobby and cafe clear the candidate bar; only cafe is confirmed
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {1, 1, 0},
	}}
	comparer := &fakeComparer{accept: map[string]float64{"cafe.jpg": 90}}
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", []mapstore.Reference{
		{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{1, 0.5, 0}},
		{Id: "cafe", Name: "Cafe", Embedding: datastructure.Vector{0.5, 1, 0}},
	})
	loc := New(zap.NewNop(), embedder, comparer, store, "org", DefaultConfig())
	store.SetReferenceImage("lobby", []byte("lobby.jpg"))
	store.SetReferenceImage("cafe", []byte("cafe.jpg"))

	match, ok, err := loc.LocalizeEnhanced(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafe", match.GetId())
	assert.Equal(t, 2, comparer.calls, "both candidates above the bar get compared")

	// blended score: 0.6*sim + 0.4*(90/100)
	sim := match.GetSimilarity()
	assert.InDelta(t, 0.6*sim+0.4*0.9, match.GetConfidence(), 1e-9)
}

func TestLocalizeEnhancedRejectionExcludesCandidateFromFallback(t *testing.T) {
	// lobby clears the candidate bar and gets rejected; cafe sits below the
	// bar but above the confidence floor and becomes the fallback answer
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {1, 0.5, 0},
	}}
	comparer := &fakeComparer{} // rejects everything
	store := mapstore.NewMemoryStore()
	store.SetReferences("org", []mapstore.Reference{
		{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{1, 0, 0}},
		{Id: "cafe", Name: "Cafe", Embedding: datastructure.Vector{0, 1, 0}},
	})
	store.SetReferenceImage("lobby", []byte("lobby.jpg"))
	loc := New(zap.NewNop(), embedder, comparer, store, "org", DefaultConfig())

	match, ok, err := loc.LocalizeEnhanced(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafe", match.GetId(), "the rejected candidate must not win the fallback")
	assert.Equal(t, 1, comparer.calls)
}

func TestLocalizeEnhancedOnlyCandidateRejectedMeansNoMatch(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {0.99, 0.05, 0},
	}}
	comparer := &fakeComparer{}
	loc, store := testLocalizer(t, embedder, comparer)
	store.SetReferenceImage("lobby", []byte("lobby.jpg"))

	_, ok, err := loc.LocalizeEnhanced(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.False(t, ok, "nothing credible remains once the sole candidate is rejected")
}

// topKStore pretends to be a store with database-side candidate ranking.
type topKStore struct {
	*mapstore.MemoryStore
	refs  []mapstore.Reference
	sims  []float64
	err   error
	calls int
}

func (s *topKStore) TopKReferences(_ context.Context, _ string, _ datastructure.Vector,
	k int) ([]mapstore.Reference, []float64, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	if len(s.refs) > k {
		return s.refs[:k], s.sims[:k], nil
	}
	return s.refs, s.sims, nil
}

func TestLocalizeUsesStoreTopKRanking(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {1, 0, 0},
	}}
	// the embedded memory store holds no references: a match can only come
	// from the ranking pushdown
	store := &topKStore{
		MemoryStore: mapstore.NewMemoryStore(),
		refs: []mapstore.Reference{
			{Id: "lobby", Name: "Lobby", Embedding: datastructure.Vector{1, 0, 0}, MapId: "hq"},
		},
		sims: []float64{0.97},
	}
	loc := New(zap.NewNop(), embedder, &fakeComparer{}, store, "org", DefaultConfig())

	match, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lobby", match.GetId())
	assert.Equal(t, 1, store.calls)
	assert.InDelta(t, 0.97, match.GetSimilarity(), 1e-9)
}

func TestLocalizeTopKFailureFallsBackToFullScan(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {0, 1, 0},
	}}
	mem := mapstore.NewMemoryStore()
	mem.SetReferences("org", []mapstore.Reference{
		{Id: "cafe", Name: "Cafe", Embedding: datastructure.Vector{0, 1, 0}, MapId: "hq"},
	})
	store := &topKStore{MemoryStore: mem, err: errors.New("pgvector index offline")}
	loc := New(zap.NewNop(), embedder, &fakeComparer{}, store, "org", DefaultConfig())

	match, ok, err := loc.Localize(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafe", match.GetId())
	assert.Equal(t, 1, store.calls, "the pushdown was attempted before the scan")
}

func TestLocalizeEnhancedCompareFailureKeepsFallback(t *testing.T) {
	// confirmation infrastructure being down is not a verdict: the embedding
	// decision still stands
	embedder := &fakeEmbedder{vectors: map[string]datastructure.Vector{
		"frame": {0.99, 0.05, 0},
	}}
	comparer := &fakeComparer{err: errors.New("vlm unreachable")}
	loc, store := testLocalizer(t, embedder, comparer)
	store.SetReferenceImage("lobby", []byte("lobby.jpg"))

	match, ok, err := loc.LocalizeEnhanced(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lobby", match.GetId())
}
