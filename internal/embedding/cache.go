package embedding

import (
	"crypto/sha256"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/store"
)

// CachingProvider wraps a Provider with two cache tiers keyed on
// content hash: an in-process ristretto L1 (fast, lost on restart) in
// front of the SQLite-backed L2 (slower, durable across restarts), so
// repeated text (recalled archive lines, re-indexed exchanges after an
// edit) never re-hits the underlying model.
type CachingProvider struct {
	inner Provider
	l1    *ristretto.Cache
	l2    *store.EmbeddingCacheStore
	model string
}

// NewCachingProvider builds a CachingProvider around inner. l1 sizing
// assumes short embedding vectors, not the large-object workload
// ristretto is tuned for by default.
func NewCachingProvider(inner Provider, l2 *store.EmbeddingCacheStore, model string) *CachingProvider {
	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		l1 = nil
	}
	return &CachingProvider{inner: inner, l1: l1, l2: l2, model: model}
}

// Embed returns cached vectors where available and only calls the
// inner provider for the texts actually missing from both cache tiers.
func (c *CachingProvider) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		hash := ContentHash(t)
		if c.l1 != nil {
			if v, ok := c.l1.Get(hash); ok {
				out[i] = v.([]float32)
				continue
			}
		}

		entry, err := c.l2.Get(hash)
		if err != nil {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		if entry != nil {
			vec := models.BytesToFloat32(entry.Embedding)
			out[i] = vec
			c.setL1(hash, vec)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = vecs[j]
		hash := ContentHash(missTexts[j])
		c.setL1(hash, vecs[j])
		entry := &models.EmbeddingCacheEntry{
			ContentHash: hash,
			Embedding:   models.Float32ToBytes(vecs[j]),
			Dimension:   len(vecs[j]),
			Model:       c.model,
		}
		if err := c.l2.Put(entry); err != nil {
			continue
		}
	}
	return out, nil
}

func (c *CachingProvider) setL1(hash string, vec []float32) {
	if c.l1 == nil {
		return
	}
	c.l1.Set(hash, vec, int64(len(vec)*4))
}

// Dimensions delegates to the wrapped provider.
func (c *CachingProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
