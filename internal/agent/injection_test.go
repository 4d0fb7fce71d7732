package agent

import (
	"strings"
	"testing"

	"github.com/wrenhollow/continuity/internal/models"
)

func TestStripInjectedBlock(t *testing.T) {
	t.Run("strips recall block prefix with day-timestamp", func(t *testing.T) {
		text := "You remember these earlier conversations with this user:\n" +
			"- They told you: \"hi\"\n  You said: \"hey\"\n" +
			"Speak from this memory naturally. Never say \"I don't have information\" about things you remember above.\n" +
			"[Mon Jan 5] actual user turn starts here"
		got := StripInjectedBlock(text)
		if !strings.HasPrefix(got, "[Mon Jan 5]") {
			t.Fatalf("expected stripped text to start at the day bracket, got %q", got)
		}
	})

	t.Run("strips context header without day-timestamp", func(t *testing.T) {
		text := "[CONTINUITY CONTEXT]\n- topic: travel\n  - fixated\nactual user text"
		got := StripInjectedBlock(text)
		if got != "actual user text" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("leaves ordinary text untouched", func(t *testing.T) {
		text := "just a normal user message"
		if got := StripInjectedBlock(text); got != text {
			t.Fatalf("expected untouched text, got %q", got)
		}
	})
}

func TestHasContinuityIntent(t *testing.T) {
	indicators := []string{"remember", "last time", "we discussed"}

	t.Run("matches case-insensitively", func(t *testing.T) {
		if !HasContinuityIntent("Do you REMEMBER what I said?", indicators) {
			t.Fatal("expected match")
		}
	})

	t.Run("no match", func(t *testing.T) {
		if HasContinuityIntent("what's the weather like", indicators) {
			t.Fatal("expected no match")
		}
	})
}

func TestShouldInject(t *testing.T) {
	cases := []struct {
		name                string
		hasContinuityIntent bool
		topScore            float64
		threshold           float64
		want                bool
	}{
		{"explicit intent overrides low score", true, 0.0, 0.5, true},
		{"score clears threshold", false, 0.6, 0.5, true},
		{"score exactly at threshold", false, 0.5, 0.5, true},
		{"neither", false, 0.2, 0.5, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ShouldInject(c.hasContinuityIntent, c.topScore, c.threshold)
			if got != c.want {
				t.Fatalf("ShouldInject(%v, %v, %v) = %v, want %v", c.hasContinuityIntent, c.topScore, c.threshold, got, c.want)
			}
		})
	}
}

func TestFormatInjection(t *testing.T) {
	t.Run("empty input returns empty string", func(t *testing.T) {
		if got := FormatInjection(nil); got != "" {
			t.Fatalf("expected empty string, got %q", got)
		}
	})

	t.Run("caps at top 3 and sorts chronologically", func(t *testing.T) {
		exchanges := []ScoredExchange{
			{Exchange: models.Exchange{Date: "2026-03-03", ExchangeIndex: 0, UserText: "third", AgentText: "reply3"}},
			{Exchange: models.Exchange{Date: "2026-01-01", ExchangeIndex: 0, UserText: "first", AgentText: "reply1"}},
			{Exchange: models.Exchange{Date: "2026-02-02", ExchangeIndex: 0, UserText: "second", AgentText: "reply2"}},
			{Exchange: models.Exchange{Date: "2026-04-04", ExchangeIndex: 0, UserText: "fourth", AgentText: "reply4"}},
		}
		got := FormatInjection(exchanges)

		if !strings.HasPrefix(got, injectionPreamble) {
			t.Fatal("expected preamble at start")
		}
		if !strings.HasSuffix(got, injectionTrailer) {
			t.Fatal("expected trailer at end")
		}
		if strings.Contains(got, "fourth") {
			t.Fatal("expected only top 3 by input order, fourth should be dropped")
		}
		firstIdx := strings.Index(got, "first")
		secondIdx := strings.Index(got, "second")
		thirdIdx := strings.Index(got, "third")
		if !(firstIdx < secondIdx && secondIdx < thirdIdx) {
			t.Fatalf("expected chronological order first, second, third; got offsets %d %d %d", firstIdx, secondIdx, thirdIdx)
		}
	})

	t.Run("truncates long text", func(t *testing.T) {
		long := strings.Repeat("a", 500)
		exchanges := []ScoredExchange{
			{Exchange: models.Exchange{Date: "2026-01-01", UserText: long, AgentText: "short"}},
		}
		got := FormatInjection(exchanges)
		if !strings.Contains(got, strings.Repeat("a", recallTruncateLen)+"...") {
			t.Fatal("expected truncation with ellipsis")
		}
	})
}
