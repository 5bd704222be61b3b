// ABOUTME: Database connection management and initialization for the run journal
// ABOUTME: Handles SQLite connection, XDG paths, and migrations

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func InitDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	// Owner only: the journal records who mailed what.
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func GetDefaultJournalPath() string {
	return filepath.Join(getDataDir(), "maillog", "journal.db")
}

func getDataDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return dataDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share")
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		entry_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		processed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_processed_messages_message_id ON processed_messages(message_id);
	CREATE INDEX IF NOT EXISTS idx_processed_messages_processed_at ON processed_messages(processed_at);
	`
	_, err := db.Exec(schema)
	return err
}
