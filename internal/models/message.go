// Package models holds the shared data types passed between the
// archiver, indexer, searcher, and orchestrator.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Part is one fragment of a multi-part message content array.
type Part struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

// Content holds either a plain string body or a list of Parts. Hosts
// that emit content as a bare string decode it as Text; hosts that emit
// an array of parts decode it as Parts.
type Content struct {
	Text  string
	Parts []Part
	isSet bool
}

// UnmarshalJSON accepts either a JSON string or a JSON array of Parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = NewTextContent(text)
		return nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*c = NewPartsContent(parts)
	return nil
}

// NewTextContent wraps a plain string as Content.
func NewTextContent(text string) Content {
	return Content{Text: text, isSet: true}
}

// NewPartsContent wraps a part list as Content.
func NewPartsContent(parts []Part) Content {
	return Content{Parts: parts, isSet: true}
}

// ExtractText concatenates the text of every part in order, or returns
// the plain string body. All components that need message text funnel
// through this one function rather than inspecting Content's shape
// themselves.
func (c Content) ExtractText() string {
	if len(c.Parts) == 0 {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Text != "" {
			b.WriteString(p.Text)
			continue
		}
		if p.Content != "" {
			b.WriteString(p.Content)
		}
	}
	return b.String()
}

// Message is one turn in a conversation as delivered by the host.
type Message struct {
	Role       Role           `json:"role"`
	Content    Content        `json:"content"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty"`
	ToolCalls  []any          `json:"tool_calls,omitempty"`
}

// Text is a convenience wrapper around Content.ExtractText.
func (m Message) Text() string {
	return m.Content.ExtractText()
}

// HasToolCall reports whether this message carries a tool/function call,
// used by the task-aware compaction strategy.
func (m Message) HasToolCall() bool {
	return len(m.ToolCalls) > 0 || m.ToolParams != nil
}

// TimestampOrNow returns the message timestamp, defaulting to the
// current time when the host omitted it.
func (m Message) TimestampOrNow() time.Time {
	if m.Timestamp != nil {
		return *m.Timestamp
	}
	return time.Now().UTC()
}
