package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewDatabase opens (or creates) the play-history SQLite database at
// the specified path and applies the schema
func NewDatabase(dbPath string) (*sql.DB, error) {
	// Ensure directory exists if not in-memory
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply pragmas first
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
-- One row per track that reached the output, however it ended
CREATE TABLE IF NOT EXISTS plays (
    id          INTEGER PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    path        TEXT    NOT NULL,
    sample_rate INTEGER NOT NULL CHECK (sample_rate > 0),
    frames      INTEGER NOT NULL CHECK (frames >= 0),
    completed   INTEGER NOT NULL CHECK (completed IN (0,1)),
    reason      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plays_started ON plays(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_plays_path ON plays(path);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DefaultDatabasePath returns the XDG-compliant path for the play
// history database, creating parent directories as needed
func DefaultDatabasePath() (string, error) {
	path, err := xdg.DataFile("mixdeck/history.db")
	if err != nil {
		return "", fmt.Errorf("failed to resolve history database path: %w", err)
	}
	return path, nil
}
