package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/wrenhollow/continuity/internal/embedding"
)

// fakeProvider is a minimal embedding.Provider that always succeeds,
// used to drive warmupEmbed without a network call or cgo dependency.
type fakeProvider struct {
	dim   int
	calls int
}

func (f *fakeProvider) Embed(texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return f.dim }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWarmupEmbedDiscoversDimensions(t *testing.T) {
	fp := &fakeProvider{dim: 384}
	chain := embedding.NewChain(fp)
	r := &Registry{embed: chain, logger: testLogger()}

	if chain.Dimensions() != 0 {
		t.Fatalf("expected undiscovered dimension before warmup, got %d", chain.Dimensions())
	}

	r.warmupEmbed("agent-1")

	if chain.Dimensions() != 384 {
		t.Fatalf("expected warmup to discover dimension 384, got %d", chain.Dimensions())
	}
	if fp.calls != 1 {
		t.Fatalf("expected exactly one warmup embed call, got %d", fp.calls)
	}
}

func TestWarmupEmbedSkipsIfAlreadyDiscovered(t *testing.T) {
	fp := &fakeProvider{dim: 384}
	chain := embedding.NewChain(fp)
	r := &Registry{embed: chain, logger: testLogger()}

	r.warmupEmbed("agent-1")
	r.warmupEmbed("agent-1")

	if fp.calls != 1 {
		t.Fatalf("expected warmup to no-op once dimension is known, got %d calls", fp.calls)
	}
}
