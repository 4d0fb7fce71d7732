// Package compactor implements threshold-triggered conversational and
// task-aware compaction strategies with a size-bound fallback.
package compactor

import (
	"math"
	"sort"
	"time"

	"github.com/wrenhollow/continuity/internal/anchors"
	"github.com/wrenhollow/continuity/internal/budget"
	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/tokenest"
)

// Compactor decides whether compaction is needed and runs the
// appropriate strategy.
type Compactor struct {
	cfg       config.Compaction
	est       *tokenest.Estimator
	allocator *budget.Allocator
	anchorCfg config.Anchors
}

// New builds a Compactor.
func New(cfg config.Compaction, est *tokenest.Estimator, allocator *budget.Allocator, anchorCfg config.Anchors) *Compactor {
	return &Compactor{cfg: cfg, est: est, allocator: allocator, anchorCfg: anchorCfg}
}

// NeedsCompaction reports whether messages exceed threshold*maxTokens.
func (c *Compactor) NeedsCompaction(messages []models.Message) bool {
	used := c.est.EstimateMessages(messages)
	return float64(used) > c.cfg.Threshold*float64(c.est.GetMaxTokens())
}

// Compact runs task-aware or conversational compaction depending on
// message shape, with a hard fallback if the result is still over
// budget.
func (c *Compactor) Compact(messages []models.Message) []models.Message {
	if !c.NeedsCompaction(messages) {
		return messages
	}

	var result []models.Message
	if c.cfg.TaskAwareCompaction && hasToolTraffic(messages) {
		result = c.taskAware(messages)
	} else {
		result = c.conversational(messages)
	}

	if c.est.IsOverBudget(c.est.EstimateMessages(result), 0.95) {
		result = c.fallback(messages)
	}
	return result
}

func hasToolTraffic(messages []models.Message) bool {
	for _, m := range messages {
		if m.Role == models.RoleTool || m.HasToolCall() {
			return true
		}
	}
	return false
}

// taskAware keeps the messages that matter for an in-progress tool loop:
// system, first user, a bounded tail of tool/assistant/user messages,
// admitted while under successively looser budget fractions.
func (c *Compactor) taskAware(messages []models.Message) []models.Message {
	maxTokens := c.est.GetMaxTokens()
	taskBudget := int(math.Floor(float64(maxTokens) * c.allocator.BudgetRatio()))

	kept := make(map[int]models.Message)
	used := 0
	admit := func(idx int, m models.Message) {
		if _, ok := kept[idx]; ok {
			return
		}
		kept[idx] = m
		used += c.est.Estimate(m.Text())
	}

	for i, m := range messages {
		if m.Role == models.RoleSystem {
			admit(i, m)
			break
		}
	}
	for i, m := range messages {
		if m.Role == models.RoleUser {
			admit(i, m)
			break
		}
	}

	for _, i := range lastNIndices(messages, func(m models.Message) bool {
		return m.Role == models.RoleTool || m.HasToolCall()
	}, 15) {
		m := messages[i]
		tok := c.est.Estimate(m.Text())
		if float64(used+tok) >= 0.7*float64(taskBudget) {
			break
		}
		admit(i, m)
	}

	for _, i := range lastNIndices(messages, func(m models.Message) bool {
		return m.Role == models.RoleAssistant
	}, 5) {
		m := messages[i]
		m.Content = models.NewTextContent(budget.Truncate(m.Text(), 1500))
		tok := c.est.Estimate(m.Text())
		if float64(used+tok) >= 0.9*float64(taskBudget) {
			break
		}
		admit(i, m)
	}

	for _, i := range lastNIndices(messages, func(m models.Message) bool {
		return m.Role == models.RoleUser
	}, 5) {
		m := messages[i]
		tok := c.est.Estimate(m.Text())
		if float64(used+tok) >= float64(taskBudget) {
			break
		}
		admit(i, m)
	}

	indices := make([]int, 0, len(kept))
	for i := range kept {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]models.Message, len(indices))
	for n, i := range indices {
		out[n] = kept[i]
	}
	return out
}

// lastNIndices returns the original indices of up to the last n messages
// matching pred, oldest first.
func lastNIndices(messages []models.Message, pred func(models.Message) bool, n int) []int {
	var matched []int
	for i, m := range messages {
		if pred(m) {
			matched = append(matched, i)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}

func (c *Compactor) conversational(messages []models.Message) []models.Message {
	entries := make([]budget.Entry, len(messages))
	for i, m := range messages {
		entries[i] = budget.Entry{Message: m, Index: i}
	}

	tracker := anchors.New(c.anchorCfg)
	detected := tracker.Detect(messages)
	block := anchors.Format(detected, time.Now())

	report := c.allocator.Select(entries, c.est.GetMaxTokens())
	out := report.Selected

	if block == "" {
		return out
	}

	for i := range out {
		if out[i].Role == models.RoleSystem {
			out[i].Content = models.NewTextContent(out[i].Text() + "\n\n" + block)
			return out
		}
	}
	sysMsg := models.Message{Role: models.RoleSystem, Content: models.NewTextContent(block)}
	return append([]models.Message{sysMsg}, out...)
}

func (c *Compactor) fallback(messages []models.Message) []models.Message {
	var system *models.Message
	for i := range messages {
		if messages[i].Role == models.RoleSystem {
			system = &messages[i]
			break
		}
	}
	n := c.cfg.FallbackMessages
	tail := messages
	if len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	if system == nil {
		return tail
	}
	return append([]models.Message{*system}, tail...)
}
