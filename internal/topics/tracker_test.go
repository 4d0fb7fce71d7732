package topics

import (
	"testing"

	"github.com/wrenhollow/continuity/internal/config"
)

func testConfig() config.TopicTracking {
	return config.TopicTracking{
		WindowSize:        5,
		FixationThreshold: 3,
		DecayFactor:       0.5,
		MinWordLength:     4,
		StopWords:         []string{"this", "that", "with", "from"},
	}
}

func idx(i int) *int { return &i }

func TestTrackRequiresRepeatedMentionToBecomeATopic(t *testing.T) {
	tr := New(testConfig())

	tr.Track("just a single mention of database here", idx(0))
	if _, ok := tr.Topics()["database"]; ok {
		t.Fatal("expected a single mention not to register as a topic")
	}

	tr.Track("database comes up again, database matters", idx(1))
	topic, ok := tr.Topics()["database"]
	if !ok {
		t.Fatal("expected two mentions in one message to register the topic")
	}
	if topic.Mentions != 1 {
		t.Fatalf("expected 1 mention recorded (from the within-message gate), got %d", topic.Mentions)
	}
}

func TestTrackAccumulatesMentionsOnceRegistered(t *testing.T) {
	tr := New(testConfig())
	tr.Track("database database talk", idx(0))
	tr.Track("another mention of database today", idx(1))
	tr.Track("database one more time", idx(2))

	topic := tr.Topics()["database"]
	if topic == nil {
		t.Fatal("expected topic registered")
	}
	if topic.Mentions < 3 {
		t.Fatalf("expected at least 3 mentions, got %d", topic.Mentions)
	}
}

func TestFixated(t *testing.T) {
	tr := New(testConfig())
	tr.Track("database database talk", idx(0))
	tr.Track("database again", idx(1))
	tr.Track("database yet again", idx(2))

	fixated := tr.Fixated()
	if _, ok := fixated["database"]; !ok {
		t.Fatalf("expected database to be fixated after reaching threshold, got %+v", fixated)
	}
}

func TestPruneStaleRemovesTopicsOutsideWindow(t *testing.T) {
	tr := New(testConfig())
	tr.Track("database database talk", idx(0))
	if _, ok := tr.Topics()["database"]; !ok {
		t.Fatal("expected database registered")
	}

	// WindowSize=5: advancing the exchange index well past the window
	// should prune it on the next Track call.
	tr.Track("completely unrelated content here", idx(10))
	if _, ok := tr.Topics()["database"]; ok {
		t.Fatal("expected database pruned after falling outside the window")
	}
}

func TestExtractTopicsFiltersStopWordsAndShortTokens(t *testing.T) {
	tr := New(testConfig())
	counts := tr.extractTopics("this that with from cat database database")
	if _, ok := counts["this"]; ok {
		t.Fatal("expected stop word filtered")
	}
	if _, ok := counts["cat"]; ok {
		t.Fatal("expected short token (under minWordLength) filtered")
	}
	if counts["database"] != 2 {
		t.Fatalf("expected database counted twice, got %d", counts["database"])
	}
}

func TestFreshness(t *testing.T) {
	tr := New(testConfig())

	t.Run("zero mentions is full freshness", func(t *testing.T) {
		if got := tr.Freshness(0); got != 1.0 {
			t.Fatalf("got %v, want 1.0", got)
		}
	})

	t.Run("decays with mentions", func(t *testing.T) {
		got := tr.Freshness(3) // mentions == fixationThreshold
		want := 1 - (3.0/3.0)*0.5
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		got := tr.Freshness(100)
		if got != 0 {
			t.Fatalf("got %v, want 0", got)
		}
	})
}

func TestFormatNotes(t *testing.T) {
	t.Run("no fixated topics returns empty string", func(t *testing.T) {
		tr := New(testConfig())
		if got := tr.FormatNotes(); got != "" {
			t.Fatalf("expected empty string, got %q", got)
		}
	})

	t.Run("renders a note per fixated topic", func(t *testing.T) {
		tr := New(testConfig())
		tr.Track("database database talk", idx(0))
		tr.Track("database again", idx(1))
		tr.Track("database yet again", idx(2))

		got := tr.FormatNotes()
		if got == "" {
			t.Fatal("expected non-empty notes")
		}
	})
}
