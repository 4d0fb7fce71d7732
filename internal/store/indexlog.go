package store

import (
	"fmt"
	"time"
)

// IndexLogStore tracks which archive dates have been indexed.
type IndexLogStore struct {
	db *DB
}

// NewIndexLogStore builds an IndexLogStore.
func NewIndexLogStore(db *DB) *IndexLogStore {
	return &IndexLogStore{db: db}
}

// MarkIndexed records date as indexed.
func (s *IndexLogStore) MarkIndexed(date string) error {
	_, err := s.db.Exec(`
		INSERT INTO index_log (date, indexed_at) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET indexed_at = excluded.indexed_at
	`, date, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark date %s indexed: %w", date, err)
	}
	return nil
}

// IndexedDates returns every date marked as indexed, keyed for
// fast membership tests.
func (s *IndexLogStore) IndexedDates() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT date FROM index_log`)
	if err != nil {
		return nil, fmt.Errorf("list indexed dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan indexed date: %w", err)
		}
		out[date] = true
	}
	return out, rows.Err()
}

// LastIndexed returns the most recent indexed_at timestamp, or zero
// time if nothing has been indexed yet.
func (s *IndexLogStore) LastIndexed() (time.Time, error) {
	var ts int64
	err := s.db.QueryRow(`SELECT MAX(indexed_at) FROM index_log`).Scan(&ts)
	if err != nil || ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts, 0).UTC(), nil
}
