package store

import (
	"database/sql"
	"fmt"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// VectorStore manages the vec_exchanges virtual table. Virtual tables
// do not support upsert, so writes are delete-then-insert within a
// transaction (spec.md §4.7/§9).
type VectorStore struct {
	db *DB
}

// NewVectorStore builds a VectorStore.
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// Replace deletes then inserts the vector row for id, inside tx.
func (s *VectorStore) Replace(tx *sql.Tx, id string, embedding []float32) error {
	if _, err := tx.Exec(`DELETE FROM vec_exchanges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete vec row %s: %w", id, err)
	}
	blob, err := sqlitevec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding %s: %w", id, err)
	}
	if _, err := tx.Exec(`INSERT INTO vec_exchanges (id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("insert vec row %s: %w", id, err)
	}
	return nil
}

// Delete removes the vector row for id.
func (s *VectorStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM vec_exchanges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vec row %s: %w", id, err)
	}
	return nil
}

// VectorMatch is one ANN search hit.
type VectorMatch struct {
	ID       string
	Distance float64
}

// Search runs a k-nearest-neighbor query against vec_exchanges.
func (s *VectorStore) Search(queryEmbedding []float32, k int) ([]VectorMatch, error) {
	blob, err := sqlitevec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT id, distance FROM vec_exchanges
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance ASC
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
