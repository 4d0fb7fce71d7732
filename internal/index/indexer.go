// Package index pairs archived messages into exchanges and writes
// them into the exchange, vector, and full-text tables.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/wrenhollow/continuity/internal/embedding"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/store"
)

// Indexer pairs a day's messages into exchanges and indexes them.
type Indexer struct {
	db        *store.DB
	exchanges *store.ExchangeStore
	vectors   *store.VectorStore
	fts       *store.FTSStore
	indexLog  *store.IndexLogStore
	embed     embedding.Provider
	logger    *slog.Logger
}

// New builds an Indexer.
func New(db *store.DB, exchanges *store.ExchangeStore, vectors *store.VectorStore, fts *store.FTSStore, indexLog *store.IndexLogStore, embed embedding.Provider, logger *slog.Logger) *Indexer {
	return &Indexer{db: db, exchanges: exchanges, vectors: vectors, fts: fts, indexLog: indexLog, embed: embed, logger: logger}
}

// Pair implements the exchange pairing rule: a user message opens a
// pair (flushing any already-open pair with no agent side), an
// assistant message closes and flushes the current pair. A trailing
// open pair is flushed at the end.
func Pair(entries []models.ArchiveEntry) []pairedExchange {
	var out []pairedExchange
	var open *pairedExchange

	flush := func() {
		if open != nil {
			out = append(out, *open)
			open = nil
		}
	}

	for _, e := range entries {
		switch e.Sender {
		case "user":
			flush()
			open = &pairedExchange{UserText: e.Text, UserTime: e.Timestamp}
		case "agent":
			if open == nil {
				open = &pairedExchange{}
			}
			open.AgentText = e.Text
			open.AgentTime = e.Timestamp
			flush()
		}
	}
	flush()
	return out
}

type pairedExchange struct {
	UserText  string
	UserTime  time.Time
	AgentText string
	AgentTime time.Time
}

// createdAt picks the earlier timestamp of whichever side of the
// pair was observed.
func (p pairedExchange) createdAt() time.Time {
	switch {
	case !p.UserTime.IsZero() && !p.AgentTime.IsZero():
		if p.UserTime.Before(p.AgentTime) {
			return p.UserTime
		}
		return p.AgentTime
	case !p.UserTime.IsZero():
		return p.UserTime
	default:
		return p.AgentTime
	}
}

// IndexDay pairs and indexes one archive day's worth of messages,
// replacing any previously indexed rows for that date.
func (ix *Indexer) IndexDay(date string, entries []models.ArchiveEntry) error {
	pairs := Pair(entries)
	existing, err := ix.exchanges.GetByDate(date)
	if err != nil {
		return fmt.Errorf("load existing exchanges for %s: %w", date, err)
	}

	texts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		texts = append(texts, embedding.PrefixDocument+combinedText(date, p))
	}
	var vecs [][]float32
	if len(texts) > 0 {
		vecs, err = ix.embed.Embed(texts)
		if err != nil {
			ix.logger.Warn("embedding batch failed, indexing without vectors", "date", date, "error", err)
			vecs = nil
		}
	}

	for i, e := range existing {
		if err := ix.deleteRow(e.ID); err != nil {
			return fmt.Errorf("clear stale row %s (%d/%d): %w", e.ID, i+1, len(existing), err)
		}
	}

	for i, p := range pairs {
		id := fmt.Sprintf("exchange_%s_%d", date, i)
		combined := combinedText(date, p)
		exch := models.Exchange{
			ID:            id,
			Date:          date,
			ExchangeIndex: i,
			UserText:      p.UserText,
			AgentText:     p.AgentText,
			Combined:      combined,
			CreatedAt:     p.createdAt(),
		}
		if err := ix.writeExchange(exch, vecs, i); err != nil {
			ix.logger.Warn("failed to index exchange, skipping it", "date", date, "exchangeId", id, "error", err)
			continue
		}
	}

	return ix.indexLog.MarkIndexed(date)
}

func (ix *Indexer) deleteRow(id string) error {
	if err := ix.exchanges.Delete(id); err != nil {
		return err
	}
	if err := ix.vectors.Delete(id); err != nil {
		return err
	}
	return ix.fts.Delete(id)
}

func (ix *Indexer) writeExchange(exch models.Exchange, vecs [][]float32, i int) error {
	return ix.db.WithTx(func(tx *sql.Tx) error {
		if err := ix.exchanges.UpsertTx(tx, exch); err != nil {
			return err
		}
		if i < len(vecs) {
			if err := ix.vectors.Replace(tx, exch.ID, vecs[i]); err != nil {
				return err
			}
		}
		return ix.fts.Replace(tx, exch.ID, exch.Combined)
	})
}

func combinedText(date string, p pairedExchange) string {
	ts := p.createdAt()
	return fmt.Sprintf("[%s %s]\nUser: %s\nAgent: %s", date, ts.Format("15:04"), p.UserText, p.AgentText)
}
