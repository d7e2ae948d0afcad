package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// logKey is the single logical key the whole session log lives under.
const logKey = "SESSION_LOGS"

// SQLiteBacking keeps the serialized log as one row of a key-value table.
type SQLiteBacking struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the backing database.
func OpenSQLite(path string) (*SQLiteBacking, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_log (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session_log table: %w", err)
	}

	return &SQLiteBacking{db: db}, nil
}

func (b *SQLiteBacking) Load() ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT value FROM session_log WHERE key = ?`, logKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session log: %w", err)
	}
	return data, nil
}

func (b *SQLiteBacking) Save(data []byte) error {
	_, err := b.db.Exec(`
		INSERT INTO session_log (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, logKey, data)
	if err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *SQLiteBacking) Close() error {
	return b.db.Close()
}
