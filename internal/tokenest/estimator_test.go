package tokenest

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wrenhollow/continuity/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEstimateHeuristic(t *testing.T) {
	e := New(1.3, 0.5, 100, discardLogger())

	t.Run("empty text is zero tokens", func(t *testing.T) {
		if got := e.Estimate(""); got != 0 {
			t.Fatalf("got %d, want 0", got)
		}
	})

	t.Run("counts words and special chars", func(t *testing.T) {
		// 3 words (1.3 each) + 1 special char, the comma (0.5), ceil(4.4) = 5
		got := e.Estimate("hello, world again")
		if got != 5 {
			t.Fatalf("got %d, want 5", got)
		}
	})
}

type fakeTokenizer struct {
	count int
	err   error
}

func (f fakeTokenizer) CountTokens(text string) (int, error) {
	return f.count, f.err
}

func TestEstimateWithTokenizer(t *testing.T) {
	e := New(1.3, 0.5, 100, discardLogger())

	t.Run("uses tokenizer result when it succeeds", func(t *testing.T) {
		e.SetTokenizer(fakeTokenizer{count: 42})
		if got := e.Estimate("anything"); got != 42 {
			t.Fatalf("got %d, want 42", got)
		}
	})

	t.Run("falls back to heuristic on tokenizer error", func(t *testing.T) {
		e.SetTokenizer(fakeTokenizer{err: errors.New("boom")})
		heuristic := New(1.3, 0.5, 100, discardLogger()).Estimate("a few words here")
		got := e.Estimate("a few words here")
		if got != heuristic {
			t.Fatalf("expected fallback to heuristic value %d, got %d", heuristic, got)
		}
	})

	t.Run("nil tokenizer reverts to heuristic", func(t *testing.T) {
		e.SetTokenizer(fakeTokenizer{count: 42})
		e.SetTokenizer(nil)
		heuristic := New(1.3, 0.5, 100, discardLogger()).Estimate("a few words here")
		if got := e.Estimate("a few words here"); got != heuristic {
			t.Fatalf("got %d, want %d", got, heuristic)
		}
	})
}

func TestEstimateMessages(t *testing.T) {
	e := New(1.3, 0.5, 100, discardLogger())
	msgs := []models.Message{
		{Role: models.RoleUser, Content: models.NewTextContent("hi there")},
		{Role: models.RoleAssistant, Content: models.NewTextContent("hello")},
	}
	got := e.EstimateMessages(msgs)
	want := e.Estimate("hi there") + perMessageOverhead + e.Estimate("hello") + perMessageOverhead
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestMaxTokensAndBudget(t *testing.T) {
	e := New(1.3, 0.5, 100, discardLogger())

	if e.GetMaxTokens() != 100 {
		t.Fatalf("expected 100, got %d", e.GetMaxTokens())
	}
	e.SetMaxTokens(200)
	if e.GetMaxTokens() != 200 {
		t.Fatalf("expected 200, got %d", e.GetMaxTokens())
	}

	if !e.IsOverBudget(181, 0.9) {
		t.Fatal("expected 181 to exceed 200*0.9=180")
	}
	if e.IsOverBudget(180, 0.9) {
		t.Fatal("expected 180 to not exceed 200*0.9=180 (strict greater-than)")
	}
}

func TestRemaining(t *testing.T) {
	e := New(1.3, 0.5, 100, discardLogger())

	t.Run("normal case", func(t *testing.T) {
		if got := e.Remaining(60); got != 40 {
			t.Fatalf("got %d, want 40", got)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		if got := e.Remaining(500); got != 0 {
			t.Fatalf("got %d, want 0", got)
		}
	})
}
