// ABOUTME: SQLite persistence for history records using modernc.org/sqlite.
// ABOUTME: Schema is created on open; saves replace the bounded persisted set wholesale.

package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB persists history records to SQLite.
type DB struct {
	db     *sql.DB
	mu     sync.Mutex // serializes SaveAll transactions
	logger *slog.Logger
}

// OpenDB opens (or creates) the history database at the given path. Parent
// directories are created if needed.
func OpenDB(path string) (*DB, error) {
	logger := slog.Default().With("component", "history-db")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS translations (
			id TEXT PRIMARY KEY,
			source_text TEXT NOT NULL,
			target_text TEXT NOT NULL,
			source_lang TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			providers TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			is_favorite INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_translations_timestamp
			ON translations(timestamp DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("history database opened", "path", path)
	return &DB{db: db, logger: logger}, nil
}

// SaveAll replaces the persisted set with the given records. The set is
// small (bounded by the persist cap), so a wholesale rewrite inside one
// transaction is simpler than diffing.
func (d *DB) SaveAll(records []*Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM translations"); err != nil {
		return fmt.Errorf("clearing translations: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO translations (id, source_text, target_text, source_lang, target_lang, providers, timestamp, is_favorite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		favorite := 0
		if rec.IsFavorite {
			favorite = 1
		}
		_, err := stmt.Exec(
			rec.ID,
			rec.SourceText,
			rec.TargetText,
			rec.SourceLang,
			rec.TargetLang,
			strings.Join(rec.Providers, ","),
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			favorite,
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRecent returns up to limit records, most recent first.
func (d *DB) LoadRecent(limit int) ([]*Record, error) {
	rows, err := d.db.Query(`
		SELECT id, source_text, target_text, source_lang, target_lang, providers, timestamp, is_favorite
		FROM translations
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying translations: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var providers, timestamp string
		var favorite int
		if err := rows.Scan(&rec.ID, &rec.SourceText, &rec.TargetText, &rec.SourceLang, &rec.TargetLang, &providers, &timestamp, &favorite); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if providers != "" {
			rec.Providers = strings.Split(providers, ",")
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp for %s: %w", rec.ID, err)
		}
		rec.IsFavorite = favorite == 1
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
