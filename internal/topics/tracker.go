// Package topics implements windowed mention counting and fixation
// flagging over the running conversation.
package topics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
)

var nonTopicChar = regexp.MustCompile(`[^a-z0-9-]`)

// Tracker is a per-agent topic state machine.
type Tracker struct {
	cfg            config.TopicTracking
	stopWords      map[string]bool
	customPatterns []*regexp.Regexp
	topics         map[string]*models.Topic
	exchangeIndex  int
}

// New builds a Tracker from the topicTracking config section.
func New(cfg config.TopicTracking) *Tracker {
	stop := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[strings.ToLower(w)] = true
	}
	var patterns []*regexp.Regexp
	for _, p := range cfg.CustomPatterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			patterns = append(patterns, re)
		}
	}
	return &Tracker{
		cfg:            cfg,
		stopWords:      stop,
		customPatterns: patterns,
		topics:         make(map[string]*models.Topic),
	}
}

// Track advances the exchange counter (auto-incrementing if exchangeIndex
// is nil), prunes stale topics, and folds text's topics into state.
func (t *Tracker) Track(text string, exchangeIndex *int) {
	if exchangeIndex != nil {
		t.exchangeIndex = *exchangeIndex
	} else {
		t.exchangeIndex++
	}

	t.pruneStale()

	counts := t.extractTopics(text)
	for token, count := range counts {
		topic, ok := t.topics[token]
		isTopic := count >= 2
		if !isTopic {
			_, revisited := t.topics[token]
			isTopic = revisited
		}
		if !isTopic {
			continue
		}
		if !ok {
			topic = &models.Topic{FirstSeen: t.exchangeIndex}
			t.topics[token] = topic
		}
		topic.Mentions++
		topic.LastSeen = t.exchangeIndex
	}
}

func (t *Tracker) pruneStale() {
	cutoff := t.exchangeIndex - t.cfg.WindowSize
	for token, topic := range t.topics {
		if topic.LastSeen < cutoff {
			delete(t.topics, token)
		}
	}
}

// extractTopics applies custom regex patterns (whole match, lowercased)
// then tokenizes the full text (pattern matches included), returning
// per-message frequency.
func (t *Tracker) extractTopics(text string) map[string]int {
	counts := make(map[string]int)

	for _, re := range t.customPatterns {
		for _, m := range re.FindAllString(text, -1) {
			counts[strings.ToLower(m)]++
		}
	}

	for _, raw := range strings.Fields(text) {
		token := strings.ToLower(raw)
		token = nonTopicChar.ReplaceAllString(token, "")
		if len(token) < t.cfg.MinWordLength {
			continue
		}
		if token[0] < 'a' || token[0] > 'z' {
			continue
		}
		if t.stopWords[token] {
			continue
		}
		counts[token]++
	}

	return counts
}

// Freshness computes the decay-adjusted freshness score for a mention
// count under the fixation threshold/decay factor.
func (t *Tracker) Freshness(mentions int) float64 {
	score := 1 - (float64(mentions)/float64(t.cfg.FixationThreshold))*t.cfg.DecayFactor
	if score < 0 {
		return 0
	}
	return score
}

// Fixated returns topics whose mentions reached the fixation threshold.
func (t *Tracker) Fixated() map[string]*models.Topic {
	out := make(map[string]*models.Topic)
	for token, topic := range t.topics {
		if topic.Mentions >= t.cfg.FixationThreshold {
			out[token] = topic
		}
	}
	return out
}

// Topics returns the full live topic map.
func (t *Tracker) Topics() map[string]*models.Topic {
	return t.topics
}

// FormatNotes renders one "[TOPIC NOTE]" line per fixated topic.
func (t *Tracker) FormatNotes() string {
	fixated := t.Fixated()
	if len(fixated) == 0 {
		return ""
	}
	var b strings.Builder
	for token, topic := range fixated {
		b.WriteString(fmt.Sprintf("[TOPIC NOTE] The topic '%s' has come up %d times recently.\n", token, topic.Mentions))
	}
	return b.String()
}
