// Package budget implements the tiered context budget allocator:
// classification of messages into priority tiers, per-tier token pools,
// and truncation-aware admission.
package budget

import (
	"math"
	"sort"
	"strings"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/tokenest"
)

// Tier is one of five priority bands governing budget allocation.
type Tier string

const (
	TierEssential Tier = "essential"
	TierHigh      Tier = "high"
	TierMedium    Tier = "medium"
	TierLow       Tier = "low"
	TierMinimal   Tier = "minimal"
)

// TierWeight returns the fixed weight for a tier.
func TierWeight(t Tier) float64 {
	switch t {
	case TierEssential:
		return 1.0
	case TierHigh:
		return 0.8
	case TierMedium:
		return 0.6
	case TierLow:
		return 0.4
	case TierMinimal:
		return 0.2
	default:
		return 0.0
	}
}

var tierOrder = []Tier{TierEssential, TierHigh, TierMedium, TierLow, TierMinimal}

// Entry is one message under consideration, with an externally-assigned
// tier override (used for anchor blocks tagged HIGH).
type Entry struct {
	Message      models.Message
	Index        int
	ForceTier    Tier // empty means classify by position
}

// PoolReport describes one tier's allocation/usage after Select.
type PoolReport struct {
	Allocated int
	Used      int
	Messages  int
}

// Report summarizes one optimization pass.
type Report struct {
	Ceiling     int
	TotalBudget int
	TotalUsed   int
	Remaining   int
	Pools       map[Tier]*PoolReport
	Selected    []models.Message
}

// Allocator classifies and selects messages under a token ceiling.
type Allocator struct {
	cfg config.ContextBudget
	est *tokenest.Estimator
}

// New builds an Allocator.
func New(cfg config.ContextBudget, est *tokenest.Estimator) *Allocator {
	return &Allocator{cfg: cfg, est: est}
}

// BudgetRatio returns the configured contextBudget.budgetRatio, the
// fraction of the ceiling the allocator treats as its working budget.
func (a *Allocator) BudgetRatio() float64 {
	return a.cfg.BudgetRatio
}

// Classify assigns a tier by position per spec.md §4.4: d = distance
// from the end, R = recentTurnsAlwaysFull.
func (a *Allocator) Classify(e Entry, totalCount int) Tier {
	if e.ForceTier != "" {
		return e.ForceTier
	}
	if e.Message.Role == models.RoleSystem {
		return TierEssential
	}
	d := totalCount - 1 - e.Index
	R := a.cfg.RecentTurnsAlwaysFull
	switch {
	case d < 2*R:
		return TierEssential
	case d < 4*R:
		return TierMedium
	case d < 8*R:
		return TierLow
	default:
		return TierMinimal
	}
}

func (a *Allocator) charLimit(t Tier) int {
	switch t {
	case TierEssential, TierHigh:
		return a.cfg.RecentTurnCharLimit
	case TierMedium:
		return a.cfg.MidTurnCharLimit
	case TierLow:
		return a.cfg.OlderTurnCharLimit
	case TierMinimal:
		return a.cfg.OlderTurnCharLimit / 2
	default:
		return a.cfg.OlderTurnCharLimit
	}
}

// Truncate shortens text to limit chars, preferring a sentence boundary
// in the back half of the chunk.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	half := limit / 2
	window := text[half:limit]
	cut := -1
	if i := strings.LastIndexAny(window, ".\n"); i >= 0 {
		cut = half + i + 1
	}
	if cut < 0 {
		return text[:limit] + " [...]"
	}
	return text[:cut]
}

// Select runs the full classify -> pool -> admit pipeline and returns a
// Report with messages resorted to original order.
func (a *Allocator) Select(entries []Entry, ceiling int) Report {
	budget := int(math.Floor(float64(ceiling) * a.cfg.BudgetRatio))

	pools := make(map[Tier]*PoolReport, len(tierOrder))
	for _, t := range tierOrder {
		ratio := a.cfg.PoolRatios[string(t)]
		pools[t] = &PoolReport{Allocated: int(math.Floor(float64(budget) * ratio))}
	}

	byTier := make(map[Tier][]Entry)
	total := len(entries)
	for _, e := range entries {
		t := a.Classify(e, total)
		byTier[t] = append(byTier[t], e)
	}

	type admitted struct {
		entry Entry
		text  string
	}
	var selected []admitted

	for _, t := range tierOrder {
		pool := pools[t]
		for _, e := range byTier[t] {
			text := Truncate(e.Message.Text(), a.charLimit(t))
			tokens := a.est.Estimate(text)
			if pool.Used+tokens > pool.Allocated {
				continue
			}
			pool.Used += tokens
			pool.Messages++
			selected = append(selected, admitted{entry: e, text: text})
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].entry.Index < selected[j].entry.Index
	})
	out := make([]models.Message, len(selected))
	for i, a := range selected {
		m := a.entry.Message
		m.Content = models.NewTextContent(a.text)
		out[i] = m
	}

	totalUsed := 0
	for _, p := range pools {
		totalUsed += p.Used
	}

	return Report{
		Ceiling:     ceiling,
		TotalBudget: budget,
		TotalUsed:   totalUsed,
		Remaining:   budget - totalUsed,
		Pools:       pools,
		Selected:    out,
	}
}
