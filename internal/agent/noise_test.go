package agent

import (
	"testing"

	"github.com/wrenhollow/continuity/internal/models"
)

func TestNoiseFilterReject(t *testing.T) {
	f := NewNoiseFilter()

	t.Run("denial phrase in agent text", func(t *testing.T) {
		reject, reason := f.Reject("what did I tell you about my dog", "I don't have any record of that.")
		if !reject {
			t.Fatal("expected reject")
		}
		if reason != "denial-phrase:i have no record" && reason != "denial-phrase:i don't have" {
			t.Fatalf("unexpected reason: %s", reason)
		}
	})

	t.Run("meta question about memory", func(t *testing.T) {
		reject, reason := f.Reject("do you remember my favorite color?", "Yes, it's blue.")
		if !reject {
			t.Fatal("expected reject")
		}
		if reason != "meta-question:do you remember" {
			t.Fatalf("unexpected reason: %s", reason)
		}
	})

	t.Run("session reset boilerplate", func(t *testing.T) {
		reject, _ := f.Reject("hello", "I'm starting fresh, how can I help?")
		if !reject {
			t.Fatal("expected reject")
		}
	})

	t.Run("trivial short pair", func(t *testing.T) {
		reject, reason := f.Reject("hi", "hello")
		if !reject || reason != "trivial-short-pair" {
			t.Fatalf("expected trivial-short-pair, got reject=%v reason=%s", reject, reason)
		}
	})

	t.Run("substantive exchange survives", func(t *testing.T) {
		reject, _ := f.Reject(
			"I'm planning a trip to Lisbon next spring, any tips on neighborhoods to stay in?",
			"Alfama and Príncipe Real are both popular; Alfama has the old-town feel, Príncipe Real is quieter and more residential.",
		)
		if reject {
			t.Fatal("expected substantive exchange to survive")
		}
	})

	t.Run("case insensitive match", func(t *testing.T) {
		reject, _ := f.Reject("DO YOU REMEMBER my birthday", "it's in March")
		if !reject {
			t.Fatal("expected case-insensitive match to reject")
		}
	})
}

func TestNoiseFilterFilter(t *testing.T) {
	f := NewNoiseFilter()
	pairs := []ScoredExchange{
		{Exchange: models.Exchange{UserText: "do you remember my dog", AgentText: "yes, Rex"}},
		{Exchange: models.Exchange{UserText: "I'm deciding between Go and Rust for a new service", AgentText: "Go tends to win for this if you want fast iteration and a simple deploy story."}},
		{Exchange: models.Exchange{UserText: "hi", AgentText: "hello"}},
	}

	out := f.Filter(pairs)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving exchange, got %d", len(out))
	}
	if out[0].Exchange.UserText != pairs[1].Exchange.UserText {
		t.Fatalf("wrong exchange survived: %q", out[0].Exchange.UserText)
	}
}

func TestIsTrivialShortPair(t *testing.T) {
	cases := []struct {
		name      string
		user      string
		agent     string
		wantTrivial bool
	}{
		{"greeting pair", "hi", "hello", true},
		{"thanks pair", "thanks", "sure", true},
		{"long user text", "hi, quick question about something long enough to not be trivial", "ok", false},
		{"non-formulaic short text", "no", "maybe", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := isTrivialShortPair(c.user, c.agent)
			if got != c.wantTrivial {
				t.Fatalf("isTrivialShortPair(%q, %q) = %v, want %v", c.user, c.agent, got, c.wantTrivial)
			}
		})
	}
}
