// Package agent implements per-turn retrieval gating: stripping
// previously injected blocks, running the hybrid searcher, filtering
// noise, deciding whether to inject, and formatting what gets
// prepended to the user's turn.
package agent

import (
	"context"
	"log/slog"

	"github.com/wrenhollow/continuity/internal/anchors"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/search"
	"github.com/wrenhollow/continuity/internal/topics"
)

// minRetrievalTextLen is the boundary behavior from spec.md §8: a
// user message under this length skips retrieval entirely.
const minRetrievalTextLen = 10

// searchLimit is how many candidates the searcher returns before
// noise filtering and injection selection.
const searchLimit = 30

// Searcher is the subset of search.Searcher the orchestrator needs,
// named here so tests can substitute a fake.
type Searcher interface {
	Search(query string, limit int) []models.RetrievedExchange
}

var _ Searcher = (*search.Searcher)(nil)

// Orchestrator runs the per-turn pipeline for one agent.
type Orchestrator struct {
	searcher            Searcher
	noise               *NoiseFilter
	anchors             *anchors.Tracker
	topics              *topics.Tracker
	continuityIndicators []string
	relevanceThreshold  float64
	logger              *slog.Logger

	lastRetrieval []ScoredExchange
}

// New builds an Orchestrator for one agent's state.
func New(searcher Searcher, anchorTracker *anchors.Tracker, topicTracker *topics.Tracker, continuityIndicators []string, relevanceThreshold float64, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		searcher:             searcher,
		noise:                NewNoiseFilter(),
		anchors:              anchorTracker,
		topics:               topicTracker,
		continuityIndicators: continuityIndicators,
		relevanceThreshold:   relevanceThreshold,
		logger:               logger,
	}
}

// TurnResult is what BeforeAgentStart hands back to the host.
type TurnResult struct {
	PrependContext string
}

// BeforeAgentStart runs the full retrieval gate for one incoming user
// message and returns the context block to prepend, per spec.md §4.9.
// It never returns an error: any internal failure degrades to an
// empty prepend so the turn still proceeds.
func (o *Orchestrator) BeforeAgentStart(ctx context.Context, userText string) TurnResult {
	cleaned := StripInjectedBlock(userText)

	if len(cleaned) < minRetrievalTextLen {
		o.lastRetrieval = nil
		return TurnResult{}
	}

	select {
	case <-ctx.Done():
		return TurnResult{}
	default:
	}

	results := o.searcher.Search(cleaned, searchLimit)
	results = o.noise.Filter(results)
	o.lastRetrieval = results

	hasIntent := HasContinuityIntent(cleaned, o.continuityIndicators)
	var topScore float64
	if len(results) > 0 {
		topScore = results[0].CompositeScore
	}

	if !ShouldInject(hasIntent, topScore, o.relevanceThreshold) {
		return TurnResult{}
	}

	return TurnResult{PrependContext: FormatInjection(results)}
}

// LastRetrieval returns the cached result from the most recent
// BeforeAgentStart call, consumed synchronously by tool-result
// enrichment.
func (o *Orchestrator) LastRetrieval() []ScoredExchange {
	return o.lastRetrieval
}

// BeforeToolCall populates the retrieval cache ahead of a
// memory_search tool invocation, so EnrichToolResult has data even if
// BeforeAgentStart skipped retrieval this turn.
func (o *Orchestrator) BeforeToolCall(toolName, query string) {
	if toolName != "memory_search" {
		return
	}
	if len(query) < minRetrievalTextLen {
		return
	}
	results := o.searcher.Search(query, searchLimit)
	o.lastRetrieval = o.noise.Filter(results)
}

// ToolResultPersist implements the synchronous tool_result_persist
// hook for the memory_search tool.
func (o *Orchestrator) ToolResultPersist(toolName, messageJSON string) string {
	if toolName != "memory_search" {
		return messageJSON
	}
	return EnrichToolResult(messageJSON, o.lastRetrieval)
}

// AfterToolCall feeds mid-turn tool output text to the topic tracker.
func (o *Orchestrator) AfterToolCall(text string) {
	o.topics.Track(text, nil)
}
