package agent

import "github.com/wrenhollow/continuity/internal/models"

// ScoredExchange is the retrieval-cache entry type every stage in the
// per-turn pipeline (noise filter, injection formatter, enrichment)
// operates on.
type ScoredExchange = models.RetrievedExchange
