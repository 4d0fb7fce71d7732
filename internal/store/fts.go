package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// FTSStore manages the fts_exchanges virtual table.
type FTSStore struct {
	db *DB
}

// NewFTSStore builds an FTSStore.
func NewFTSStore(db *DB) *FTSStore {
	return &FTSStore{db: db}
}

// Replace deletes then inserts the FTS row for id, inside tx.
func (s *FTSStore) Replace(tx *sql.Tx, id, combined string) error {
	if _, err := tx.Exec(`DELETE FROM fts_exchanges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete fts row %s: %w", id, err)
	}
	if _, err := tx.Exec(`INSERT INTO fts_exchanges (id, combined) VALUES (?, ?)`, id, combined); err != nil {
		return fmt.Errorf("insert fts row %s: %w", id, err)
	}
	return nil
}

// Delete removes the FTS row for id.
func (s *FTSStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM fts_exchanges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fts row %s: %w", id, err)
	}
	return nil
}

// FTSMatch is one keyword search hit.
type FTSMatch struct {
	ID   string
	Rank float64
}

var (
	stripChars     = regexp.MustCompile(`[*"^(){}\[\]:]`)
	booleanTokens  = regexp.MustCompile(`(?i)\b(AND|OR|NOT|NEAR)\b`)
	punctuationRun = regexp.MustCompile(`[^\w\s]+`)
)

// SanitizeQuery implements spec.md §4.8's keyword sanitizer: strip
// special FTS5 syntax chars, drop boolean operator tokens, replace
// punctuation with spaces, drop short tokens, quote survivors, and join
// with implicit AND.
func SanitizeQuery(query string) string {
	q := stripChars.ReplaceAllString(query, "")
	q = booleanTokens.ReplaceAllString(q, " ")
	q = punctuationRun.ReplaceAllString(q, " ")

	var quoted []string
	for _, tok := range strings.Fields(q) {
		if len(tok) < 2 {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("%q", tok))
	}
	return strings.Join(quoted, " ")
}

// Search runs a BM25-ranked FTS5 query, ascending by rank (lower is
// better). Returns nil, nil if the sanitized query has fewer than 2
// usable tokens, per spec.md §8's boundary behavior.
func (s *FTSStore) Search(query string, limit int) ([]FTSMatch, error) {
	sanitized := SanitizeQuery(query)
	if len(strings.Fields(sanitized)) < 2 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, bm25(fts_exchanges) AS rank FROM fts_exchanges
		WHERE fts_exchanges MATCH ?
		ORDER BY rank ASC
		LIMIT ?
	`, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var out []FTSMatch
	for rows.Next() {
		var m FTSMatch
		if err := rows.Scan(&m.ID, &m.Rank); err != nil {
			return nil, fmt.Errorf("scan fts match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
