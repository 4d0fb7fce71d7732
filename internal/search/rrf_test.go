package search

import (
	"sort"
	"testing"
)

func TestFuseRRF(t *testing.T) {
	listOne := rankedList{"A", "B", "C"}
	listTwo := rankedList{"B", "D"}

	scores := fuseRRF(60, listOne, listTwo)

	want := map[string]float64{
		"A": 1.0 / 61,
		"B": 1.0/62 + 1.0/61,
		"C": 1.0 / 63,
		"D": 1.0 / 62,
	}
	const eps = 1e-9
	for id, w := range want {
		got, ok := scores[id]
		if !ok {
			t.Fatalf("missing score for %s", id)
		}
		if diff := got - w; diff > eps || diff < -eps {
			t.Fatalf("score[%s] = %v, want %v", id, got, w)
		}
	}

	order := []string{"B", "A", "D", "C"}
	ranked := make([]string, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })
	for i, id := range order {
		if ranked[i] != id {
			t.Fatalf("rank %d = %s, want %s (full order %v)", i, ranked[i], id, ranked)
		}
	}
}

func TestFuseRRFEmptyLists(t *testing.T) {
	scores := fuseRRF(60)
	if len(scores) != 0 {
		t.Fatalf("expected no scores, got %d", len(scores))
	}
}
