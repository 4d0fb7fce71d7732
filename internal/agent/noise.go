package agent

import "strings"

// denialPhrases are agent-side admissions of forgetting. Their
// presence in a recalled exchange's agent text means the exchange
// carries no useful memory and should never be surfaced again.
var denialPhrases = []string{
	"i don't have",
	"no memory of",
	"no recollection",
	"it looks like i don't",
	"i don't recall",
	"i'm not able to recall",
	"i have no record",
}

// metaQuestions are user-side questions about memory itself rather
// than about substantive content.
var metaQuestions = []string{
	"do you remember",
	"do you recall",
	"did i tell you",
	"sorry to keep asking",
	"have i mentioned",
	"have we talked about",
}

// sessionResetBoilerplate flags greeting/reconstruction turns that
// exist only because a session restarted.
var sessionResetBoilerplate = []string{
	"i'm starting fresh",
	"new conversation",
	"as a new session",
	"i don't have access to previous",
}

// NoiseFilter drops recalled exchanges that carry no retrievable
// substance: denials, meta-questions about memory, session-reset
// boilerplate, or trivially short formulaic pairs.
type NoiseFilter struct{}

// NewNoiseFilter builds a NoiseFilter.
func NewNoiseFilter() *NoiseFilter { return &NoiseFilter{} }

// Reject reports whether the exchange should be dropped, along with
// which documented pattern matched (for test/debug visibility).
func (f *NoiseFilter) Reject(userText, agentText string) (bool, string) {
	lowerAgent := strings.ToLower(agentText)
	lowerUser := strings.ToLower(userText)

	for _, p := range denialPhrases {
		if strings.Contains(lowerAgent, p) {
			return true, "denial-phrase:" + p
		}
	}
	for _, p := range metaQuestions {
		if strings.Contains(lowerUser, p) {
			return true, "meta-question:" + p
		}
	}
	for _, p := range sessionResetBoilerplate {
		if strings.Contains(lowerUser, p) || strings.Contains(lowerAgent, p) {
			return true, "session-reset:" + p
		}
	}
	if isTrivialShortPair(lowerUser, lowerAgent) {
		return true, "trivial-short-pair"
	}
	return false, ""
}

// isTrivialShortPair flags exchanges that are both very short and
// formulaic (a greeting met with an equally content-free reply).
func isTrivialShortPair(userText, agentText string) bool {
	if len(userText) > 20 || len(agentText) > 40 {
		return false
	}
	formulaic := []string{"hi", "hello", "hey", "ok", "okay", "thanks", "sure", "got it"}
	for _, f := range formulaic {
		if userText == f || strings.TrimSpace(agentText) == f {
			return true
		}
	}
	return false
}

// Filter removes every exchange that Reject flags.
func (f *NoiseFilter) Filter(pairs []ScoredExchange) []ScoredExchange {
	out := make([]ScoredExchange, 0, len(pairs))
	for _, p := range pairs {
		if reject, _ := f.Reject(p.Exchange.UserText, p.Exchange.AgentText); reject {
			continue
		}
		out = append(out, p)
	}
	return out
}
