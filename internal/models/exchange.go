package models

import "time"

// Exchange is a paired (user, agent) turn, the unit of indexing.
type Exchange struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	ExchangeIndex int       `json:"exchange_index"`
	UserText      string    `json:"user_text"`
	AgentText     string    `json:"agent_text"`
	Combined      string    `json:"combined"`
	MetadataJSON  string    `json:"metadata_json,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasUser reports whether the user side of the pair was observed.
func (e Exchange) HasUser() bool { return e.UserText != "" }

// HasAgent reports whether the agent side of the pair was observed.
func (e Exchange) HasAgent() bool { return e.AgentText != "" }

// ArchiveEntry is one message row inside a day file.
type ArchiveEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"` // "user" | "agent"
	Text      string    `json:"text"`
}

// DedupKey is the uniqueness key used by the archiver: identical keys
// are never written twice to the same day file.
func (e ArchiveEntry) DedupKey() string {
	return e.Timestamp.Format(time.RFC3339Nano) + "_" + e.Sender
}

// ArchiveDay is the on-disk shape of one {YYYY-MM-DD}.json file.
type ArchiveDay struct {
	Date         string         `json:"date"`
	MessageCount int            `json:"messageCount"`
	Messages     []ArchiveEntry `json:"messages"`
}

// IndexLog tracks which archive dates have been indexed.
type IndexLog struct {
	Dates       []string  `json:"dates"`
	LastIndexed time.Time `json:"lastIndexed"`
}
