package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"agentmail-search/internal/config"
)

// Open opens (creating parent directories as needed) the relational store
// described by cfg.Storage, with the configured journal mode, synchronous
// level, and busy timeout baked into the DSN, then ensures schema is
// current.
func Open(cfg *config.Config) (*sql.DB, error) {
	path := cfg.Storage.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir for %s: %w", path, err)
		}
	}

	journalMode := cfg.Storage.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}
	synchronous := cfg.Storage.Synchronous
	if synchronous == "" {
		synchronous = "NORMAL"
	}
	busyTimeoutMs := cfg.BusyTimeoutDuration().Milliseconds()

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		path, journalMode, synchronous, busyTimeoutMs)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := EnsureSchema(db, path); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}

	return db, nil
}
