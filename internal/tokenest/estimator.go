// Package tokenest estimates token counts for raw text and message
// lists when no precise tokenizer is configured.
package tokenest

import (
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/wrenhollow/continuity/internal/models"
)

// Tokenizer is a pluggable precise token counter. It must accept a
// string and return a nonnegative integer; on failure the heuristic is
// used with a warning.
type Tokenizer interface {
	CountTokens(text string) (int, error)
}

var specialCharPattern = regexp.MustCompile(`[^\w\s]`)

const perMessageOverhead = 4

// Estimator implements the heuristic word/special-char token model and
// accepts an optional precise Tokenizer override.
type Estimator struct {
	tokensPerWord          float64
	specialCharTokenWeight float64
	maxTokens              int
	tokenizer              Tokenizer
	logger                 *slog.Logger
}

// New builds an Estimator from the tokenEstimation config section.
func New(tokensPerWord, specialCharTokenWeight float64, defaultMaxTokens int, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		tokensPerWord:          tokensPerWord,
		specialCharTokenWeight: specialCharTokenWeight,
		maxTokens:              defaultMaxTokens,
		logger:                 logger,
	}
}

// SetTokenizer installs a precise tokenizer. Passing nil reverts to the
// heuristic.
func (e *Estimator) SetTokenizer(t Tokenizer) {
	e.tokenizer = t
}

// Estimate returns the estimated token count of text.
func (e *Estimator) Estimate(text string) int {
	if e.tokenizer != nil {
		n, err := e.tokenizer.CountTokens(text)
		if err == nil && n >= 0 {
			return n
		}
		e.logger.Warn("tokenizer plugin failed, falling back to heuristic", "error", err)
	}
	return e.heuristic(text)
}

func (e *Estimator) heuristic(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	specialChars := len(specialCharPattern.FindAllString(text, -1))
	return int(math.Ceil(float64(words)*e.tokensPerWord + float64(specialChars)*e.specialCharTokenWeight))
}

// EstimateMessages sums Estimate over every message's text plus a fixed
// per-message overhead.
func (e *Estimator) EstimateMessages(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += e.Estimate(m.Text()) + perMessageOverhead
	}
	return total
}

// SetMaxTokens updates the configured ceiling.
func (e *Estimator) SetMaxTokens(max int) {
	e.maxTokens = max
}

// GetMaxTokens returns the configured ceiling.
func (e *Estimator) GetMaxTokens() int {
	return e.maxTokens
}

// IsOverBudget reports whether count exceeds maxTokens*ratio.
func (e *Estimator) IsOverBudget(count int, ratio float64) bool {
	return float64(count) > float64(e.maxTokens)*ratio
}

// Remaining returns the token allowance left under the ceiling.
func (e *Estimator) Remaining(used int) int {
	r := e.maxTokens - used
	if r < 0 {
		return 0
	}
	return r
}
