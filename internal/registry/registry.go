// Package registry keeps one isolated storage bundle per agent id,
// creating it lazily and idempotently on first use.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/wrenhollow/continuity/internal/agent"
	"github.com/wrenhollow/continuity/internal/anchors"
	"github.com/wrenhollow/continuity/internal/archive"
	"github.com/wrenhollow/continuity/internal/budget"
	"github.com/wrenhollow/continuity/internal/compactor"
	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/embedding"
	"github.com/wrenhollow/continuity/internal/index"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/search"
	"github.com/wrenhollow/continuity/internal/store"
	"github.com/wrenhollow/continuity/internal/tokenest"
	"github.com/wrenhollow/continuity/internal/topics"
)

// defaultAgentID is the implicit "main" agent that owns {dataDir}
// directly rather than a subdirectory.
const defaultAgentID = "main"

// Storage is one agent's fully wired set of components. Nothing in
// here is shared with any other agent's Storage.
type Storage struct {
	AgentID      string
	DataDir      string
	DB           *store.DB
	Archiver     *archive.Archiver
	IndexLog     *store.IndexLogStore
	Indexer      *index.Indexer
	Searcher     *search.Searcher
	Orchestrator *agent.Orchestrator
	Anchors      *anchors.Tracker
	Topics       *topics.Tracker
	Estimator    *tokenest.Estimator
	Allocator    *budget.Allocator
	Compactor    *compactor.Compactor
	SessionStart models.SessionState
}

// Registry maps agent ids to their Storage, building each lazily.
// Construction is guarded by double-checked locking so concurrent
// first callers for the same agent id all observe one initialization.
type Registry struct {
	cfg    *config.Config
	embed  *embedding.Chain
	logger *slog.Logger

	mu     sync.RWMutex
	bundle map[string]*Storage
	initMu map[string]*sync.Mutex
}

// New builds an empty Registry. Storage bundles are created on first
// access via Get.
func New(cfg *config.Config, embed *embedding.Chain, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		embed:  embed,
		logger: logger,
		bundle: make(map[string]*Storage),
		initMu: make(map[string]*sync.Mutex),
	}
}

// Get returns the Storage for agentID, creating it on first call. An
// empty agentID is treated as the default agent.
func (r *Registry) Get(ctx context.Context, agentID string) (*Storage, error) {
	if agentID == "" {
		agentID = defaultAgentID
	}

	r.mu.RLock()
	if s, ok := r.bundle[agentID]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	lock, ok := r.initMu[agentID]
	if !ok {
		lock = &sync.Mutex{}
		r.initMu[agentID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	if s, ok := r.bundle[agentID]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	s, err := r.build(agentID)
	if err != nil {
		return nil, fmt.Errorf("build storage for agent %s: %w", agentID, err)
	}

	r.mu.Lock()
	r.bundle[agentID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) dataDirFor(agentID string) string {
	if agentID == defaultAgentID {
		return r.cfg.DataDir
	}
	return filepath.Join(r.cfg.DataDir, "agents", agentID)
}

func (r *Registry) build(agentID string) (*Storage, error) {
	dataDir := r.dataDirFor(agentID)

	r.warmupEmbed(agentID)

	db, err := store.Open(filepath.Join(dataDir, r.cfg.Embedding.DBFile), r.embed.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	archiver, err := archive.New(filepath.Join(dataDir, "archive"), r.cfg.Archive.RetentionDays, r.logger)
	if err != nil {
		return nil, fmt.Errorf("init archiver: %w", err)
	}
	if r.cfg.Archive.S3Bucket != "" {
		mirror, err := archive.NewS3Backend(context.Background(), r.cfg.Archive.S3Bucket, r.cfg.Archive.S3Prefix)
		if err != nil {
			r.logger.Warn("s3 mirror unavailable, continuing without it", "agentId", agentID, "error", err)
		} else {
			archiver.SetMirror(mirror)
		}
	}

	exchangeStore := store.NewExchangeStore(db)
	vectorStore := store.NewVectorStore(db)
	ftsStore := store.NewFTSStore(db)
	indexLogStore := store.NewIndexLogStore(db)
	cacheStore := store.NewEmbeddingCacheStore(db)

	cachedEmbed := embedding.NewCachingProvider(r.embed, cacheStore, r.cfg.Embedding.Model)

	indexer := index.New(db, exchangeStore, vectorStore, ftsStore, indexLogStore, cachedEmbed, r.logger)
	searcher := search.New(db, vectorStore, ftsStore, exchangeStore, cachedEmbed, r.cfg.Search, r.logger)

	archiveDir := filepath.Join(dataDir, "archive")
	if watcher, err := archive.NewWatcher(archiveDir, r.logger); err != nil {
		r.logger.Warn("archive watcher unavailable, relying on maintenance sweep only", "agentId", agentID, "error", err)
	} else {
		go watchAndReindex(watcher, archiver, indexer, r.logger)
	}

	anchorTracker := anchors.New(r.cfg.Anchors)
	topicTracker := topics.New(r.cfg.TopicTracking)

	orch := agent.New(searcher, anchorTracker, topicTracker, r.cfg.ContinuityIndicators, r.cfg.Search.RelevanceThreshold, r.logger)

	estimator := tokenest.New(r.cfg.TokenEstimation.TokensPerWord, r.cfg.TokenEstimation.SpecialCharTokenWeight, r.cfg.TokenEstimation.DefaultMaxTokens, r.logger)
	if tk, err := tokenest.NewTiktokenEstimator("cl100k_base"); err != nil {
		r.logger.Warn("tiktoken encoding unavailable, using heuristic token estimator", "agentId", agentID, "error", err)
	} else {
		estimator.SetTokenizer(tk)
	}

	allocator := budget.New(r.cfg.ContextBudget, estimator)
	comp := compactor.New(r.cfg.Compaction, estimator, allocator, r.cfg.Anchors)

	return &Storage{
		AgentID:      agentID,
		DataDir:      dataDir,
		DB:           db,
		Archiver:     archiver,
		IndexLog:     indexLogStore,
		Indexer:      indexer,
		Searcher:     searcher,
		Orchestrator: orch,
		Anchors:      anchorTracker,
		Topics:       topicTracker,
		Estimator:    estimator,
		Allocator:    allocator,
		Compactor:    comp,
	}, nil
}

// warmupEmbed issues a throwaway embed call so the Chain discovers its
// active provider's dimension before store.Open sizes vec_exchanges.
// Without this, Dimensions() reads 0 and the vector table is never
// created. The call is bounded to 5s; a slow or failing provider just
// leaves the dimension undiscovered for this attempt, and store.Open
// degrades to the no-vector-table path as before.
func (r *Registry) warmupEmbed(agentID string) {
	if r.embed.Dimensions() != 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.embed.Embed([]string{embedding.PrefixDocument + "warmup"}); err != nil {
			r.logger.Warn("embedding warmup call failed, vector table may stay unsized", "agentId", agentID, "error", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("embedding warmup call timed out, vector table may stay unsized", "agentId", agentID)
	}
}

// watchAndReindex reindexes a day immediately whenever the watcher
// reports its archive file changed on disk (including rewrites made by
// Archive() itself), rather than waiting for the next maintenance sweep
// to notice it.
func watchAndReindex(w *archive.Watcher, archiver *archive.Archiver, indexer *index.Indexer, logger *slog.Logger) {
	for date := range w.Dates {
		day, err := archiver.GetConversation(date)
		if err != nil {
			logger.Warn("watcher could not load changed day", "date", date, "error", err)
			continue
		}
		if err := indexer.IndexDay(date, day.Messages); err != nil {
			logger.Warn("watcher-triggered reindex failed", "date", date, "error", err)
		}
	}
}

// Agents returns every agent id currently instantiated, plus a
// summary for the listAgents administrative method.
func (r *Registry) Agents() []models.AgentSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentSummary, 0, len(r.bundle))
	for id, s := range r.bundle {
		count, _ := s.DB.ExchangeCount()
		out = append(out, models.AgentSummary{
			AgentID:       id,
			ExchangeCount: count,
			StorageReady:  true,
			DataDir:       s.DataDir,
		})
	}
	return out
}
