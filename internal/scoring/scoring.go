// Package scoring normalizes heterogeneous relevance signals into a single
// bounded score. Lexical and vector sub-scores are each mapped into [0,1],
// weights are rescaled to sum to one, and the fused score is their weighted
// sum, so it stays in [0,1] regardless of caller-supplied weights.
package scoring

import "math"

// WeightTolerance is the tolerance within which a weight pair is accepted
// as already normalized.
const WeightTolerance = 1e-6

// DefaultTextMaxValue is the ceiling applied to raw lexical scores before
// normalization. Raw BM25-style scores are unbounded and corpus-dependent;
// clipping bounds them before fusion.
const DefaultTextMaxValue = 10.0

// Spec is the scoring specification a search request carries into the index.
type Spec struct {
	TextWeight   float64
	VectorWeight float64
	TextMaxValue float64
	MinScore     float64
	UseMinScore  bool
}

// Normalized returns a copy of the spec with weights rescaled and the text
// ceiling defaulted.
func (s Spec) Normalized() Spec {
	s.TextWeight, s.VectorWeight = NormalizeWeights(s.TextWeight, s.VectorWeight)
	if s.TextMaxValue <= 0 {
		s.TextMaxValue = DefaultTextMaxValue
	}
	return s
}

// NormalizeWeights rescales a weight pair so it sums to 1.0, preserving the
// ratio between the two. Pairs already summing to 1 within WeightTolerance
// are returned unchanged. A degenerate all-zero pair falls back to an even
// split so fusion stays defined.
func NormalizeWeights(textWeight, vectorWeight float64) (float64, float64) {
	if textWeight < 0 {
		textWeight = 0
	}
	if vectorWeight < 0 {
		vectorWeight = 0
	}
	sum := textWeight + vectorWeight
	if sum == 0 {
		return 0.5, 0.5
	}
	if math.Abs(sum-1.0) <= WeightTolerance {
		return textWeight, vectorWeight
	}
	return textWeight / sum, vectorWeight / sum
}

// TextSubScore maps a raw lexical score into [0,1] by clipping at maxValue
// and dividing by it. The mapping is monotonically non-decreasing up to the
// ceiling and constant above it.
func TextSubScore(raw, maxValue float64) float64 {
	if maxValue <= 0 {
		maxValue = DefaultTextMaxValue
	}
	if raw <= 0 {
		return 0
	}
	if raw >= maxValue {
		return 1
	}
	return raw / maxValue
}

// VectorSubScore maps a cosine similarity in [-1,1] into [0,1] via
// (cos+1)/2, floored at 0. Out-of-range inputs are clamped rather than
// rejected so float drift near the bounds never produces an invalid score.
func VectorSubScore(cosine float64) float64 {
	score := (cosine + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Fuse combines two sub-scores already in [0,1] using the spec's weights.
func Fuse(textScore, vectorScore float64, spec Spec) float64 {
	return textScore*spec.TextWeight + vectorScore*spec.VectorWeight
}

// Passes reports whether a fused (or single-mode) score survives the
// spec's threshold. Filtering with Passes must happen before any top-k
// truncation so the limit never undercounts valid hits.
func (s Spec) Passes(score float64) bool {
	if !s.UseMinScore {
		return true
	}
	return score >= s.MinScore
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Zero-magnitude vectors yield 0, never an error.
func CosineSimilarity(a, b []float32) float64 {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
