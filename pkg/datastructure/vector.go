package datastructure

import (
	"errors"
	"math"
)

// Vector. a fixed-length image embedding produced by the external embedding
// service. float32 matches the wire format and the pgvector column type.
type Vector []float32

// ZeroVector. substituted when the embedding service fails. cosine similarity
// of the zero vector with anything is 0, so a failed extraction degrades to
// "no match" instead of an error.
func ZeroVector(dim int) Vector {
	return make(Vector, dim)
}

func (v Vector) Dim() int {
	return len(v)
}

func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity. normalized dot product in [-1, 1]. either operand being
// the zero vector yields 0 without a division error. accumulation in float64
// so long CLIP vectors do not lose precision.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// floating error can push the ratio a hair outside [-1, 1]
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// MeanVector. component-wise average of several embeddings, e.g. from a short
// rotate-in-place scan. smooths single-frame noise before comparison.
func MeanVector(vectors []Vector) (Vector, error) {
	if len(vectors) == 0 {
		return nil, errors.New("mean of zero vectors")
	}

	dim := vectors[0].Dim()
	sum := make([]float64, dim)
	for _, v := range vectors {
		if v.Dim() != dim {
			return nil, errors.New("mean of vectors with mismatched dimensions")
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	mean := make(Vector, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(len(vectors)))
	}
	return mean, nil
}
