package agent

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
	"github.com/wrenhollow/continuity/internal/models"
)

func TestEnrichToolResult(t *testing.T) {
	cached := []ScoredExchange{
		{Exchange: models.Exchange{Date: "2026-01-01", UserText: "what's my favorite editor", AgentText: "you said neovim"}, VectorScore: 0.2},
	}

	t.Run("invalid json returned unchanged", func(t *testing.T) {
		in := "not json"
		if got := EnrichToolResult(in, cached); got != in {
			t.Fatalf("expected unchanged, got %q", got)
		}
	})

	t.Run("already has 2+ results is not enriched", func(t *testing.T) {
		in := `{"results":[{"id":"a"},{"id":"b"}]}`
		if got := EnrichToolResult(in, cached); got != in {
			t.Fatalf("expected unchanged, got %q", got)
		}
	})

	t.Run("no cached exchanges leaves output unchanged", func(t *testing.T) {
		in := `{"results":[]}`
		if got := EnrichToolResult(in, nil); got != in {
			t.Fatalf("expected unchanged, got %q", got)
		}
	})

	t.Run("sparse results get spliced and a recall block is prepended", func(t *testing.T) {
		in := `{"results":[{"id":"only-one"}]}`
		got := EnrichToolResult(in, cached)

		if !strings.HasPrefix(got, enrichmentPreamble) {
			t.Fatal("expected recall block preamble prepended")
		}
		if !strings.Contains(got, enrichmentTrailer) {
			t.Fatal("expected recall block trailer present")
		}

		jsonStart := strings.Index(got, "{")
		if jsonStart < 0 {
			t.Fatal("expected json body present")
		}
		body := got[jsonStart:]
		if !gjson.Valid(body) {
			t.Fatalf("expected valid json body, got %q", body)
		}
		results := gjson.Get(body, "results")
		if len(results.Array()) != 2 {
			t.Fatalf("expected original result plus synthesized archive result, got %d", len(results.Array()))
		}
		synthID := gjson.Get(body, "results.1.id").String()
		if !strings.HasPrefix(synthID, "archive_2026-01-01_") {
			t.Fatalf("expected synthesized archive id, got %q", synthID)
		}
		if gjson.Get(body, "results.1.source").String() != "conversation-archive" {
			t.Fatal("expected source tag on synthesized result")
		}
	})

	t.Run("caps synthesized results at 5", func(t *testing.T) {
		many := make([]ScoredExchange, 8)
		for i := range many {
			many[i] = ScoredExchange{Exchange: models.Exchange{Date: "2026-01-01", UserText: "u", AgentText: "a"}}
		}
		got := synthesizeArchiveResults(many)
		if len(got) != 5 {
			t.Fatalf("expected 5, got %d", len(got))
		}
	})

	t.Run("long snippet truncated to archive snippet length", func(t *testing.T) {
		long := strings.Repeat("x", 1000)
		in := []ScoredExchange{{Exchange: models.Exchange{Date: "2026-01-01", Combined: long}}}
		got := synthesizeArchiveResults(in)
		if len(got[0].Snippet) != archiveSnippetLen {
			t.Fatalf("expected snippet length %d, got %d", archiveSnippetLen, len(got[0].Snippet))
		}
	})
}
