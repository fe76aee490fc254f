package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	battery_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	raw_count INTEGER NOT NULL,
	volts REAL NOT NULL,
	display_volts REAL NOT NULL,
	in_range BOOLEAN NOT NULL,
	taken_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS measurements_by_battery ON measurements (battery_id, kind, taken_at);

CREATE TABLE IF NOT EXISTS switch_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_case TEXT NOT NULL,
	to_case TEXT NOT NULL,
	result_case TEXT NOT NULL,
	error TEXT,
	at TEXT NOT NULL,
	duration_us INTEGER NOT NULL
);
`

// Open opens (creating if needed) the history database and applies the
// schema.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; the main loop and the API share this handle
	conn.SetMaxOpenConns(1)

	if err := ApplySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("path", dbPath).Msg("History database ready")
	return conn, nil
}

func ApplySchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
