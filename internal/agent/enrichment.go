package agent

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	archiveSnippetLen  = 700
	enrichmentPreamble = "You remember these conversations with this user:"
	enrichmentTrailer  = "Speak from this memory naturally when answering."
)

// ArchiveResult is one synthesized archive hit spliced into a
// memory_search tool result.
type ArchiveResult struct {
	ID      string  `json:"id"`
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// EnrichToolResult splices cached retrieval results into a thin
// memory_search tool output, when the tool itself returned fewer
// than two results. It is synchronous and does no I/O: every input
// it needs (the cached exchanges) was already computed at turn
// start. On any parse failure it returns the original text
// unmodified, per the "never fail a turn" error policy.
func EnrichToolResult(toolResultJSON string, cached []ScoredExchange) string {
	if !gjson.Valid(toolResultJSON) {
		return toolResultJSON
	}
	results := gjson.Get(toolResultJSON, "results")
	if results.IsArray() && len(results.Array()) >= 2 {
		return toolResultJSON
	}
	if len(cached) == 0 {
		return toolResultJSON
	}

	synth := synthesizeArchiveResults(cached)
	base := 0
	if results.IsArray() {
		base = len(results.Array())
	}
	out := toolResultJSON
	var err error
	for i, a := range synth {
		path := fmt.Sprintf("results.%d", base+i)
		out, err = sjson.Set(out, path+".id", a.ID)
		if err != nil {
			return toolResultJSON
		}
		out, _ = sjson.Set(out, path+".path", a.Path)
		out, _ = sjson.Set(out, path+".snippet", a.Snippet)
		out, _ = sjson.Set(out, path+".source", a.Source)
		out, _ = sjson.Set(out, path+".score", a.Score)
	}

	return buildRecallBlock(cached) + "\n" + out
}

func synthesizeArchiveResults(cached []ScoredExchange) []ArchiveResult {
	limit := len(cached)
	if limit > 5 {
		limit = 5
	}
	out := make([]ArchiveResult, 0, limit)
	for i := 0; i < limit; i++ {
		e := cached[i]
		snippet := e.Exchange.Combined
		if len(snippet) > archiveSnippetLen {
			snippet = snippet[:archiveSnippetLen]
		}
		out = append(out, ArchiveResult{
			ID:      fmt.Sprintf("archive_%s_%d", e.Exchange.Date, i),
			Path:    fmt.Sprintf("archive/%s.json", e.Exchange.Date),
			Snippet: snippet,
			Source:  "conversation-archive",
			Score:   1 - e.Distance,
		})
	}
	return out
}

func buildRecallBlock(cached []ScoredExchange) string {
	var b strings.Builder
	b.WriteString(enrichmentPreamble)
	b.WriteString("\n")
	for _, e := range cached {
		fmt.Fprintf(&b, "They told you: %q\n", truncate(e.Exchange.UserText, recallTruncateLen))
		fmt.Fprintf(&b, "You said: %q\n", truncate(e.Exchange.AgentText, recallTruncateLen))
	}
	b.WriteString(enrichmentTrailer)
	return b.String()
}
