// Package search implements hybrid retrieval: semantic (vector)
// search and keyword (FTS5/BM25) search fused with reciprocal rank
// fusion, then re-ranked with a recency boost.
package search

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/embedding"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/store"
)

// maxFetchLimit caps how many candidates each retriever pulls before
// fusion, regardless of the requested result limit.
const maxFetchLimit = 60

// Searcher runs the hybrid vector+keyword search and temporal re-rank
// described for retrieval gating.
type Searcher struct {
	db       *store.DB
	vectors  *store.VectorStore
	fts      *store.FTSStore
	exchange *store.ExchangeStore
	embed    embedding.Provider
	cfg      config.Search
	logger   *slog.Logger
}

// New builds a Searcher.
func New(db *store.DB, vectors *store.VectorStore, fts *store.FTSStore, exchange *store.ExchangeStore, embed embedding.Provider, cfg config.Search, logger *slog.Logger) *Searcher {
	return &Searcher{db: db, vectors: vectors, fts: fts, exchange: exchange, embed: embed, cfg: cfg, logger: logger}
}

// Search never returns an error to callers: retrieval is best-effort,
// and a failed search degrades to an empty result set rather than
// interrupting a turn.
func (s *Searcher) Search(query string, limit int) []models.RetrievedExchange {
	results, err := s.search(query, limit)
	if err != nil {
		s.logger.Warn("search failed, degrading to empty result", "error", err)
		return nil
	}
	return results
}

func (s *Searcher) search(query string, limit int) ([]models.RetrievedExchange, error) {
	fetchLimit := limit * 2
	if fetchLimit > maxFetchLimit {
		fetchLimit = maxFetchLimit
	}
	if fetchLimit < limit {
		fetchLimit = limit
	}

	var vecList, ftsList rankedList
	vecScores := make(map[string]float64)
	distances := make(map[string]float64)

	vecs, err := s.embed.Embed([]string{embedding.PrefixQuery + query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) > 0 {
		matches, err := s.vectors.Search(vecs[0], fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		for _, m := range matches {
			vecList = append(vecList, m.ID)
			vecScores[m.ID] = 1.0 / (1.0 + m.Distance)
			distances[m.ID] = m.Distance
		}
	}

	ftsScores := make(map[string]float64)
	if s.db.HasFTS() {
		matches, err := s.fts.Search(query, fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("fts search: %w", err)
		}
		for _, m := range matches {
			ftsList = append(ftsList, m.ID)
			ftsScores[m.ID] = m.Rank
		}
	}

	k := s.cfg.RRFK
	if k <= 0 {
		k = DefaultRRFK
	}
	fused := fuseRRF(k, vecList, ftsList)
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	exchanges, err := s.exchange.GetByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load fused exchanges: %w", err)
	}
	byID := make(map[string]models.Exchange, len(exchanges))
	for _, e := range exchanges {
		byID[e.ID] = e
	}

	halfLife := s.cfg.RecencyHalfLifeDays
	if halfLife <= 0 {
		halfLife = 14
	}
	weight := s.cfg.RecencyWeight

	out := make([]models.RetrievedExchange, 0, len(fused))
	now := time.Now()
	for id, rrfScore := range fused {
		e, ok := byID[id]
		if !ok {
			continue
		}
		ageDays := now.Sub(e.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recencyBoost := math.Exp(-ageDays/halfLife) * weight
		composite := rrfScore * (1 + recencyBoost)
		dist, hasVectorMatch := distances[id]
		if !hasVectorMatch {
			dist = 1.0 // never vector-scored; no measured distance to report
		}
		out = append(out, models.RetrievedExchange{
			Exchange:       e,
			VectorScore:    vecScores[id],
			Distance:       dist,
			BM25Score:      ftsScores[id],
			RRFScore:       rrfScore,
			RecencyBoost:   recencyBoost,
			CompositeScore: composite,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompositeScore > out[j].CompositeScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
