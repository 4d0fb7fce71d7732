package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// recallBlockPrefixes begin a previously injected recall block.
var recallBlockPrefixes = []string{
	"You remember these earlier conversations",
	"From your knowledge base:",
}

// contextHeaderPrefixes begin a previously injected header-only block.
var contextHeaderPrefixes = []string{
	"[CONTINUITY CONTEXT]",
	"[STABILITY CONTEXT]",
}

var dayTimestampBracket = regexp.MustCompile(`\[(Mon|Tue|Wed|Thu|Fri|Sat|Sun)[^\]]*\]`)

// StripInjectedBlock removes a previously injected recall block or
// context header from the front of text, so repeated injections
// never compound across turns.
func StripInjectedBlock(text string) string {
	for _, prefix := range recallBlockPrefixes {
		if strings.HasPrefix(text, prefix) {
			if loc := dayTimestampBracket.FindStringIndex(text); loc != nil {
				return strings.TrimLeft(text[loc[0]:], " \n")
			}
			return stripKnownHeaderLines(text)
		}
	}
	for _, prefix := range contextHeaderPrefixes {
		if strings.HasPrefix(text, prefix) {
			if loc := dayTimestampBracket.FindStringIndex(text); loc != nil {
				return strings.TrimLeft(text[loc[0]:], " \n")
			}
			return stripKnownHeaderLines(text)
		}
	}
	return text
}

func stripKnownHeaderLines(text string) string {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		isHeader := false
		for _, prefix := range append(append([]string{}, recallBlockPrefixes...), contextHeaderPrefixes...) {
			if strings.HasPrefix(line, prefix) {
				isHeader = true
				break
			}
		}
		if !isHeader && (strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "  ") || line == "" ||
			strings.HasPrefix(line, "Speak from this memory naturally")) {
			isHeader = true
		}
		if !isHeader {
			break
		}
		i++
	}
	return strings.TrimLeft(strings.Join(lines[i:], "\n"), " \n")
}

// HasContinuityIntent reports whether text contains any configured
// continuity indicator, case-insensitively.
func HasContinuityIntent(text string, indicators []string) bool {
	lower := strings.ToLower(text)
	for _, ind := range indicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}

const (
	recallTruncateLen = 300
	injectionPreamble = "You remember these earlier conversations with this user:"
	injectionTrailer  = `Speak from this memory naturally. Never say "I don't have information" about things you remember above.`
)

// ShouldInject decides whether recalled exchanges are worth injecting
// into the turn: either the user explicitly signals recall intent, or
// the best surviving result clears the relevance threshold.
func ShouldInject(hasContinuityIntent bool, topScore, relevanceThreshold float64) bool {
	return hasContinuityIntent || topScore >= relevanceThreshold
}

// FormatInjection renders up to the top 3 exchanges, sorted
// chronologically, into the recall block shown to the model.
func FormatInjection(exchanges []ScoredExchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	top := exchanges
	if len(top) > 3 {
		top = top[:3]
	}
	sorted := make([]ScoredExchange, len(top))
	copy(sorted, top)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Exchange.Date != sorted[j].Exchange.Date {
			return sorted[i].Exchange.Date < sorted[j].Exchange.Date
		}
		return sorted[i].Exchange.ExchangeIndex < sorted[j].Exchange.ExchangeIndex
	})

	var b strings.Builder
	b.WriteString(injectionPreamble)
	b.WriteString("\n")
	for _, e := range sorted {
		fmt.Fprintf(&b, "- They told you: %q\n", truncate(e.Exchange.UserText, recallTruncateLen))
		fmt.Fprintf(&b, "  You said: %q\n", truncate(e.Exchange.AgentText, recallTruncateLen))
	}
	b.WriteString(injectionTrailer)
	return b.String()
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
