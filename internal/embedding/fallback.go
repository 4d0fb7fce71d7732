package embedding

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var wordSplit = regexp.MustCompile(`[a-z0-9]+`)

// FeatureExtractionProvider is the last rung of the embedding preference
// chain: a dependency-free local embedding built from hashed
// bag-of-words features, mean-pooled and L2-normalized the same way the
// ONNX tier would pool token embeddings. It has no external runtime
// requirement, so it is always available when the HTTP endpoint and any
// local model library are not.
type FeatureExtractionProvider struct {
	dimensions int
}

// NewFeatureExtractionProvider builds a fixed-dimension fallback
// embedder.
func NewFeatureExtractionProvider(dimensions int) *FeatureExtractionProvider {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &FeatureExtractionProvider{dimensions: dimensions}
}

// Embed implements Provider. Each token is hashed into a bucket of the
// output vector (a feature-hashing trick); per-token contributions are
// averaged (mean pooling) and the result is L2-normalized.
func (p *FeatureExtractionProvider) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embedOne(t)
	}
	return out, nil
}

func (p *FeatureExtractionProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dimensions)
	tokens := wordSplit.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return normalize(vec)
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32()) % p.dimensions
		if bucket < 0 {
			bucket += p.dimensions
		}
		sign := float32(1.0)
		if (h.Sum32()>>7)&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	for i := range vec {
		vec[i] /= float32(len(tokens))
	}
	return normalize(vec)
}

// Dimensions implements Provider.
func (p *FeatureExtractionProvider) Dimensions() int {
	return p.dimensions
}

func normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
