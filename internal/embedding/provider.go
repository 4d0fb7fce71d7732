// Package embedding implements the embedding-provider preference chain:
// an HTTP embedding endpoint, then a local feature-extraction fallback,
// wrapped in a content-hash cache.
package embedding

// Provider is the one operation every embedding backend exposes:
// embed a batch of texts, return one vector per input in order.
type Provider interface {
	Embed(texts []string) ([][]float32, error)
	Dimensions() int
}

const (
	// PrefixDocument is prepended to texts embedded for indexing.
	PrefixDocument = "search_document: "
	// PrefixQuery is prepended to texts embedded for retrieval.
	PrefixQuery = "search_query: "
)

// Chain tries providers in order, remembering which one first
// succeeded so subsequent calls skip the earlier failing tiers. The
// embedding dimension is discovered on first successful call and
// frozen thereafter.
type Chain struct {
	providers []Provider
	active    int
	dim       int
}

// NewChain builds a Chain over providers, tried in the given order
// (e.g. HTTP endpoint, then local feature-extraction pipeline).
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers, active: -1}
}

// Embed tries the active provider first; on failure (or before one is
// established) it walks the chain from the start, adopting the first
// provider that succeeds.
func (c *Chain) Embed(texts []string) ([][]float32, error) {
	if c.active >= 0 {
		vecs, err := c.providers[c.active].Embed(texts)
		if err == nil {
			return vecs, nil
		}
	}
	var lastErr error
	for i, p := range c.providers {
		vecs, err := p.Embed(texts)
		if err != nil {
			lastErr = err
			continue
		}
		c.active = i
		if c.dim == 0 && len(vecs) > 0 {
			c.dim = len(vecs[0])
		}
		return vecs, nil
	}
	return nil, lastErr
}

// Dimensions returns the frozen dimension of the active provider, or 0
// if no provider has yet succeeded.
func (c *Chain) Dimensions() int {
	if c.dim != 0 {
		return c.dim
	}
	if c.active >= 0 {
		return c.providers[c.active].Dimensions()
	}
	return 0
}
