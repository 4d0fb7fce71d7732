package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/wrenhollow/continuity/internal/models"
)

// ExchangeStore handles CRUD for the exchanges table.
type ExchangeStore struct {
	db *DB
}

// NewExchangeStore builds an ExchangeStore.
func NewExchangeStore(db *DB) *ExchangeStore {
	return &ExchangeStore{db: db}
}

// Upsert inserts or replaces one exchange row.
func (s *ExchangeStore) Upsert(e models.Exchange) error {
	_, err := s.db.Exec(upsertExchangeSQL, upsertExchangeArgs(e)...)
	if err != nil {
		return fmt.Errorf("upsert exchange %s: %w", e.ID, err)
	}
	return nil
}

// UpsertTx is Upsert run inside an already-open transaction, so the
// exchange row commits atomically with its vector and FTS rows.
func (s *ExchangeStore) UpsertTx(tx *sql.Tx, e models.Exchange) error {
	_, err := tx.Exec(upsertExchangeSQL, upsertExchangeArgs(e)...)
	if err != nil {
		return fmt.Errorf("upsert exchange %s: %w", e.ID, err)
	}
	return nil
}

const upsertExchangeSQL = `
	INSERT INTO exchanges (id, date, exchange_index, user_text, agent_text, combined, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		exchange_index = excluded.exchange_index,
		user_text = excluded.user_text,
		agent_text = excluded.agent_text,
		combined = excluded.combined,
		metadata = excluded.metadata,
		created_at = excluded.created_at
`

func upsertExchangeArgs(e models.Exchange) []any {
	return []any{e.ID, e.Date, e.ExchangeIndex, e.UserText, e.AgentText, e.Combined, e.MetadataJSON, e.CreatedAt.Unix()}
}

// GetByID fetches one exchange, or nil if absent.
func (s *ExchangeStore) GetByID(id string) (*models.Exchange, error) {
	var e models.Exchange
	var createdAt int64
	err := s.db.QueryRow(`
		SELECT id, date, exchange_index, user_text, agent_text, combined, metadata, created_at
		FROM exchanges WHERE id = ?
	`, id).Scan(&e.ID, &e.Date, &e.ExchangeIndex, &e.UserText, &e.AgentText, &e.Combined, &e.MetadataJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange %s: %w", id, err)
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

// GetByIDs fetches a batch of exchanges, used by the searcher to load
// the rows behind its fused hits.
func (s *ExchangeStore) GetByIDs(ids []string) ([]models.Exchange, error) {
	out := make([]models.Exchange, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// GetByDate returns every exchange indexed for date, ordered by
// exchange_index.
func (s *ExchangeStore) GetByDate(date string) ([]models.Exchange, error) {
	rows, err := s.db.Query(`
		SELECT id, date, exchange_index, user_text, agent_text, combined, metadata, created_at
		FROM exchanges WHERE date = ? ORDER BY exchange_index ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("get exchanges for date %s: %w", date, err)
	}
	defer rows.Close()

	var out []models.Exchange
	for rows.Next() {
		var e models.Exchange
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Date, &e.ExchangeIndex, &e.UserText, &e.AgentText, &e.Combined, &e.MetadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetAroundIndex returns exchanges in [index-before, index+after] for
// the given date.
func (s *ExchangeStore) GetAroundIndex(date string, index, before, after int) ([]models.Exchange, error) {
	rows, err := s.db.Query(`
		SELECT id, date, exchange_index, user_text, agent_text, combined, metadata, created_at
		FROM exchanges
		WHERE date = ? AND exchange_index BETWEEN ? AND ?
		ORDER BY exchange_index ASC
	`, date, index-before, index+after)
	if err != nil {
		return nil, fmt.Errorf("get exchanges around index: %w", err)
	}
	defer rows.Close()

	var out []models.Exchange
	for rows.Next() {
		var e models.Exchange
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Date, &e.ExchangeIndex, &e.UserText, &e.AgentText, &e.Combined, &e.MetadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes one exchange row (and, via the caller, its vector/FTS
// rows) by id.
func (s *ExchangeStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM exchanges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete exchange %s: %w", id, err)
	}
	return nil
}
