// Package anchors detects continuity anchors (identity, contradiction,
// tension moments) in user messages and keeps a priority-pruned list of
// them per agent session.
package anchors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
)

const maxAnchorTextLen = 200

// Tracker holds the live anchor set for one agent session.
type Tracker struct {
	cfg     config.Anchors
	maxAge  time.Duration
	anchors []models.Anchor
	seen    map[string]bool // (type, messageIndex) dedup guard
}

// New builds a Tracker from the anchors config section.
func New(cfg config.Anchors) *Tracker {
	maxAge, err := time.ParseDuration(cfg.MaxAge)
	if err != nil {
		maxAge = 30 * 24 * time.Hour
	}
	return &Tracker{
		cfg:    cfg,
		maxAge: maxAge,
		seen:   make(map[string]bool),
	}
}

// Detect scans only user-role messages, appending at most one anchor per
// (type, messageIndex) pair, then prunes by age and truncates by
// priority/recency to maxCount.
func (t *Tracker) Detect(messages []models.Message) []models.Anchor {
	if !t.cfg.Enabled {
		return t.anchors
	}

	for idx, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		text := strings.ToLower(m.Text())

		for _, typ := range []models.AnchorType{models.AnchorIdentity, models.AnchorContradiction, models.AnchorTension} {
			keywords := t.cfg.Keywords[string(typ)]
			kw := firstMatch(text, keywords)
			if kw == "" {
				continue
			}
			dedupKey := fmt.Sprintf("%s:%d", typ, idx)
			if t.seen[dedupKey] {
				continue
			}
			t.seen[dedupKey] = true

			anchorText := m.Text()
			if len(anchorText) > maxAnchorTextLen {
				anchorText = anchorText[:maxAnchorTextLen]
			}
			t.anchors = append(t.anchors, models.Anchor{
				Type:         typ,
				Priority:     models.AnchorPriority(typ),
				Text:         anchorText,
				Timestamp:    m.TimestampOrNow(),
				MessageIndex: idx,
				Keyword:      kw,
			})
		}
	}

	t.prune()
	return t.anchors
}

func firstMatch(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

func (t *Tracker) prune() {
	cutoff := time.Now().Add(-t.maxAge)
	kept := t.anchors[:0]
	for _, a := range t.anchors {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	t.anchors = kept

	sort.SliceStable(t.anchors, func(i, j int) bool {
		if t.anchors[i].Priority != t.anchors[j].Priority {
			return t.anchors[i].Priority > t.anchors[j].Priority
		}
		return t.anchors[i].Timestamp.After(t.anchors[j].Timestamp)
	})

	if t.cfg.MaxCount > 0 && len(t.anchors) > t.cfg.MaxCount {
		t.anchors = t.anchors[:t.cfg.MaxCount]
	}
}

// Anchors returns the current pruned anchor list.
func (t *Tracker) Anchors() []models.Anchor {
	return t.anchors
}

// Format renders the anchors as a "[CONTINUITY ANCHORS]" block, one line
// per anchor.
func Format(anchors []models.Anchor, now time.Time) string {
	if len(anchors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[CONTINUITY ANCHORS]\n")
	for _, a := range anchors {
		b.WriteString(fmt.Sprintf("%s: %q (%s)\n", strings.ToUpper(string(a.Type)), a.Text, formatAge(now, a.Timestamp)))
	}
	return b.String()
}

func formatAge(now, ts time.Time) string {
	d := now.Sub(ts)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dmin ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
