package services

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrDimensionMismatch = errors.New("vectors must have the same dimension")
	ErrEmptyVector       = errors.New("vectors cannot be empty")
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-magnitude vectors have similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// scored pairs a candidate index with its similarity
type scored struct {
	index int
	score float64
}

// topK ranks candidates against query by cosine similarity, skipping
// vectors of a different dimension. Ties keep candidate order.
func topK(query []float32, candidates [][]float32, k int) []scored {
	results := make([]scored, 0, len(candidates))
	for i, vec := range candidates {
		score, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, scored{index: i, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
