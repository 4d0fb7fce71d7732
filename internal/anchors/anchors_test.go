package anchors

import (
	"testing"
	"time"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
)

func testConfig() config.Anchors {
	return config.Anchors{
		Enabled:  true,
		MaxAge:   "720h",
		MaxCount: 20,
		Keywords: map[string][]string{
			"identity":      {"my name is", "i work as"},
			"contradiction": {"actually no", "that's wrong"},
			"tension":       {"i'm worried", "i'm stressed"},
		},
	}
}

func userMsg(text string) models.Message {
	now := time.Now()
	return models.Message{Role: models.RoleUser, Content: models.NewTextContent(text), Timestamp: &now}
}

func TestDetectIdentifiesAnchorTypes(t *testing.T) {
	tr := New(testConfig())
	msgs := []models.Message{
		userMsg("hi there"),
		userMsg("my name is Alex and I work remotely"),
		{Role: models.RoleAssistant, Content: models.NewTextContent("nice to meet you")},
		userMsg("actually no, that's wrong about my job title"),
		userMsg("i'm stressed about the deadline"),
	}

	got := tr.Detect(msgs)
	if len(got) != 3 {
		t.Fatalf("expected 3 anchors, got %d: %+v", len(got), got)
	}

	types := map[models.AnchorType]bool{}
	for _, a := range got {
		types[a.Type] = true
	}
	if !types[models.AnchorIdentity] || !types[models.AnchorContradiction] || !types[models.AnchorTension] {
		t.Fatalf("expected all three anchor types present, got %+v", got)
	}
}

func TestDetectDisabledReturnsExisting(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	tr := New(cfg)
	msgs := []models.Message{userMsg("my name is Alex")}
	got := tr.Detect(msgs)
	if len(got) != 0 {
		t.Fatalf("expected no anchors when disabled, got %d", len(got))
	}
}

func TestDetectDedupsSameMessage(t *testing.T) {
	tr := New(testConfig())
	msgs := []models.Message{userMsg("my name is Alex")}
	tr.Detect(msgs)
	got := tr.Detect(msgs) // re-running over the same message list must not double count
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 anchor after re-detect, got %d", len(got))
	}
}

func TestDetectIgnoresNonUserMessages(t *testing.T) {
	tr := New(testConfig())
	msgs := []models.Message{
		{Role: models.RoleAssistant, Content: models.NewTextContent("my name is the assistant")},
	}
	got := tr.Detect(msgs)
	if len(got) != 0 {
		t.Fatalf("expected no anchors from assistant messages, got %d", len(got))
	}
}

func TestPruneRespectsMaxCount(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCount = 2
	tr := New(cfg)

	var msgs []models.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, userMsg("my name is person number here"))
	}
	got := tr.Detect(msgs)
	if len(got) > 2 {
		t.Fatalf("expected at most 2 anchors after pruning, got %d", len(got))
	}
}

func TestPrunePrioritizesHigherWeightAnchors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCount = 1
	tr := New(cfg)

	msgs := []models.Message{
		userMsg("i'm worried about this a lot"),   // tension, priority 0.7
		userMsg("my name is Alex for the record"), // identity, priority 1.0
	}
	got := tr.Detect(msgs)
	if len(got) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(got))
	}
	if got[0].Type != models.AnchorIdentity {
		t.Fatalf("expected the higher-priority identity anchor to survive, got %s", got[0].Type)
	}
}

func TestFormat(t *testing.T) {
	t.Run("empty anchors returns empty string", func(t *testing.T) {
		if got := Format(nil, time.Now()); got != "" {
			t.Fatalf("expected empty string, got %q", got)
		}
	})

	t.Run("renders header and one line per anchor", func(t *testing.T) {
		now := time.Now()
		anchors := []models.Anchor{
			{Type: models.AnchorIdentity, Text: "my name is Alex", Timestamp: now.Add(-5 * time.Minute)},
		}
		got := Format(anchors, now)
		if got == "" {
			t.Fatal("expected non-empty output")
		}
		if got[:len("[CONTINUITY ANCHORS]\n")] != "[CONTINUITY ANCHORS]\n" {
			t.Fatalf("expected header, got %q", got)
		}
	})
}
