package models

// Topic is a tracked mention record keyed by lowercased topic token.
type Topic struct {
	Mentions      int   `json:"mentions"`
	FirstSeen     int   `json:"firstSeen"`
	LastSeen      int   `json:"lastSeen"`
	LastTimestamp int64 `json:"lastTimestamp"`
}
