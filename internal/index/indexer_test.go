package index

import (
	"testing"
	"time"

	"github.com/wrenhollow/continuity/internal/models"
)

func ts(min int) time.Time {
	return time.Date(2025, 6, 1, 0, min, 0, 0, time.UTC)
}

func TestPairAlternatingStream(t *testing.T) {
	entries := []models.ArchiveEntry{
		{Timestamp: ts(0), Sender: "user", Text: "hi"},
		{Timestamp: ts(1), Sender: "agent", Text: "hello"},
		{Timestamp: ts(2), Sender: "user", Text: "bye"},
		{Timestamp: ts(3), Sender: "agent", Text: "goodbye"},
	}
	pairs := Pair(entries)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].UserText != "hi" || pairs[0].AgentText != "hello" {
		t.Fatalf("unexpected pair 0: %+v", pairs[0])
	}
	if pairs[1].UserText != "bye" || pairs[1].AgentText != "goodbye" {
		t.Fatalf("unexpected pair 1: %+v", pairs[1])
	}
}

func TestPairOrphanUserFlushed(t *testing.T) {
	entries := []models.ArchiveEntry{
		{Timestamp: ts(0), Sender: "user", Text: "first"},
		{Timestamp: ts(1), Sender: "user", Text: "second"},
		{Timestamp: ts(2), Sender: "agent", Text: "reply"},
	}
	pairs := Pair(entries)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].UserText != "first" || pairs[0].AgentText != "" {
		t.Fatalf("expected orphaned first pair, got %+v", pairs[0])
	}
	if pairs[1].UserText != "second" || pairs[1].AgentText != "reply" {
		t.Fatalf("unexpected second pair: %+v", pairs[1])
	}
}

func TestPairTrailingAgentFlushed(t *testing.T) {
	entries := []models.ArchiveEntry{
		{Timestamp: ts(0), Sender: "user", Text: "hi"},
		{Timestamp: ts(1), Sender: "agent", Text: "hello"},
		{Timestamp: ts(2), Sender: "agent", Text: "orphan reply"},
	}
	pairs := Pair(entries)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[1].UserText != "" || pairs[1].AgentText != "orphan reply" {
		t.Fatalf("expected trailing orphan agent pair, got %+v", pairs[1])
	}
}

func TestPairEmptyStream(t *testing.T) {
	pairs := Pair(nil)
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %d", len(pairs))
	}
}
