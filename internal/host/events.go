// Package host declares the lifecycle event and administrative method
// contracts the runtime exposes to whatever host embeds it. It holds
// types and interfaces only — no logic.
package host

import "github.com/wrenhollow/continuity/internal/models"

// BeforeAgentStartEvent carries the full message history for a turn
// about to begin.
type BeforeAgentStartEvent struct {
	AgentID  string           `json:"agentId"`
	Messages []models.Message `json:"messages"`
}

// BeforeAgentStartResult is returned to the host: text to prepend to
// the user's turn, plus the message list after compaction (unchanged
// if no compaction was needed this turn).
type BeforeAgentStartResult struct {
	PrependContext string           `json:"prependContext"`
	Messages       []models.Message `json:"messages"`
}

// BeforeToolCallEvent fires immediately before a tool invocation.
type BeforeToolCallEvent struct {
	AgentID  string         `json:"agentId"`
	ToolName string         `json:"toolName"`
	Params   map[string]any `json:"params"`
}

// AfterToolCallEvent carries a tool's raw result text.
type AfterToolCallEvent struct {
	AgentID string `json:"agentId"`
	Result  string `json:"result"`
}

// ToolResultPersistEvent fires synchronously when a tool result is
// about to be written back into the transcript.
type ToolResultPersistEvent struct {
	AgentID  string `json:"agentId"`
	ToolName string `json:"toolName"`
	Message  string `json:"message"`
}

// ToolResultPersistResult carries the (possibly modified) message.
type ToolResultPersistResult struct {
	Message string `json:"message"`
}

// AgentEndEvent carries the full turn transcript once an agent turn
// has finished.
type AgentEndEvent struct {
	AgentID  string           `json:"agentId"`
	Messages []models.Message `json:"messages"`
}

// BeforeCompactionEvent fires ahead of a compaction pass.
type BeforeCompactionEvent struct {
	AgentID string `json:"agentId"`
}

// SessionStartEvent resets per-session counters.
type SessionStartEvent struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
}

// SessionEndEvent triggers a final index pass.
type SessionEndEvent struct {
	AgentID      string `json:"agentId"`
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
}

// Lifecycle is the full set of host lifecycle hooks this module
// implements. A host adapter (e.g. cmd/hookd) wires its own transport
// to these methods.
type Lifecycle interface {
	BeforeAgentStart(BeforeAgentStartEvent) (BeforeAgentStartResult, error)
	BeforeToolCall(BeforeToolCallEvent) error
	AfterToolCall(AfterToolCallEvent) error
	ToolResultPersist(ToolResultPersistEvent) (ToolResultPersistResult, error)
	AgentEnd(AgentEndEvent) error
	BeforeCompaction(BeforeCompactionEvent) error
	SessionStart(SessionStartEvent) error
	SessionEnd(SessionEndEvent) error
}

// GetStateResponse answers the getState administrative method.
type GetStateResponse struct {
	ArchiveStats  any      `json:"archiveStats"`
	Topics        any      `json:"topics"`
	Anchors       any      `json:"anchors"`
	ExchangeCount int      `json:"exchangeCount"`
	SessionAgeSec float64  `json:"sessionAge"`
	IndexReady    bool     `json:"indexReady"`
}

// SearchRequest is the body of the search administrative method.
type SearchRequest struct {
	Text    string `json:"text"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	AgentID string `json:"agentId"`
}

// SearchResponse answers the search administrative method.
type SearchResponse struct {
	Exchanges []models.Exchange `json:"exchanges"`
	Distances []float64         `json:"distances"`
}

// TopicsResponse answers the getTopics administrative method.
type TopicsResponse struct {
	Topics  map[string]*models.Topic `json:"topics"`
	Fixated map[string]*models.Topic `json:"fixated"`
}

// Administrative is the set of request/response administrative
// methods exposed alongside the lifecycle hooks.
type Administrative interface {
	GetState(agentID string) (GetStateResponse, error)
	GetConfig() (any, error)
	Search(req SearchRequest) (SearchResponse, error)
	GetArchiveStats(agentID string) (any, error)
	GetTopics(agentID string) (TopicsResponse, error)
	ListAgents() ([]models.AgentSummary, error)
}
