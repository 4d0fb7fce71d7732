package models

import "time"

// SessionState is the per-agent in-memory state the registry hands out.
// Fields mutated across turns live here so each agent's data stays
// disjoint from every other agent's.
type SessionState struct {
	AgentID       string
	SessionStart  time.Time
	ExchangeCount int
	StorageReady  bool
}

// RetrievedExchange is one search hit, carried in the per-agent
// lastRetrievalCache between the turn-start search and the synchronous
// tool-result enrichment hook.
type RetrievedExchange struct {
	Exchange       Exchange
	VectorScore    float64
	Distance       float64 // raw vector distance; 1 for FTS-only hits never vector-scored
	BM25Score      float64
	RRFScore       float64
	RecencyBoost   float64
	CompositeScore float64
}

// ArchiveEntryResult is a compact archive hit synthesized for tool-result
// enrichment (spec.md §4.10).
type ArchiveEntryResult struct {
	ID      string  `json:"id"`
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// AgentSummary is returned by the listAgents administrative method.
type AgentSummary struct {
	AgentID       string `json:"agentId"`
	ExchangeCount int    `json:"exchangeCount"`
	StorageReady  bool   `json:"storageReady"`
	DataDir       string `json:"dataDir"`
}
