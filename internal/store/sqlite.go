// Package store owns the per-agent SQLite database: the exchanges
// table, the vec_exchanges vector virtual table, the fts_exchanges
// full-text virtual table, and the embedding cache.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func init() {
	sqlitevec.Auto()
}

// DB wraps the SQLite connection, with the embedding dimension the
// vec_exchanges table was created with.
type DB struct {
	*sql.DB
	Dimensions int
}

// Open creates or opens the SQLite database at dbPath, applies
// migrations, and ensures the vector table matches dim. If dim differs
// from the dimension vec_exchanges already has, the table is recreated
// per spec.md §8's "embedding dimension mismatch forces recreation"
// boundary behavior.
func Open(dbPath string, dim int) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(sqlDB, dbPath); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.ensureVectorTable(dim); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ensure vector table: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB, dbPath string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite3 migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ensureVectorTable creates vec_exchanges at dimension dim, recreating
// it if it already exists at a different dimension.
func (db *DB) ensureVectorTable(dim int) error {
	if dim <= 0 {
		db.Dimensions = 0
		return nil
	}

	var existingDim sql.NullInt64
	_ = db.QueryRow(`SELECT value FROM vec_meta WHERE key = 'dimensions'`).Scan(&existingDim)

	if existingDim.Valid && int(existingDim.Int64) != dim {
		if _, err := db.Exec(`DROP TABLE IF EXISTS vec_exchanges`); err != nil {
			return fmt.Errorf("drop stale vec_exchanges: %w", err)
		}
		existingDim.Valid = false
	}

	if !existingDim.Valid {
		stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_exchanges USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, dim)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create vec_exchanges: %w", err)
		}
		if _, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS vec_meta (key TEXT PRIMARY KEY, value INTEGER NOT NULL)
		`); err != nil {
			return fmt.Errorf("create vec_meta: %w", err)
		}
		if _, err := db.Exec(`
			INSERT INTO vec_meta (key, value) VALUES ('dimensions', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, dim); err != nil {
			return fmt.Errorf("record vec dimensions: %w", err)
		}
	}

	db.Dimensions = dim
	return nil
}

// ExchangeCount returns the total number of indexed exchanges.
func (db *DB) ExchangeCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM exchanges").Scan(&count)
	return count, err
}

// HasFTS reports whether the fts_exchanges virtual table exists; its
// absence degrades search to semantic-only per spec.md §4.7.
func (db *DB) HasFTS() bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='fts_exchanges'`).Scan(&name)
	return err == nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on any error (including a panic, which is re-raised
// after rollback).
func (db *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
