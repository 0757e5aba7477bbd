package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is the durable home of the historical cache: candles, detected
// data gaps, and per-key cache metadata, all in one sqlite file.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			source     TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(symbol, interval, source, timestamp)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_candles_source_symbol_interval
			ON candles(source, symbol, interval);`,
		`CREATE INDEX IF NOT EXISTS idx_candles_timestamp_desc
			ON candles(timestamp DESC);`,
		`CREATE TABLE IF NOT EXISTS data_gaps (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol           TEXT NOT NULL,
			interval         TEXT NOT NULL,
			source           TEXT NOT NULL,
			gap_start        INTEGER NOT NULL,
			gap_end          INTEGER NOT NULL,
			gap_size_minutes INTEGER NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_gaps_symbol_interval_status
			ON data_gaps(symbol, interval, status);`,
		`CREATE INDEX IF NOT EXISTS idx_gaps_time_range
			ON data_gaps(gap_start, gap_end);`,
		`CREATE TABLE IF NOT EXISTS cache_metadata (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol            TEXT NOT NULL,
			interval          TEXT NOT NULL,
			source            TEXT NOT NULL,
			first_candle_time INTEGER,
			last_candle_time  INTEGER,
			total_candles     INTEGER NOT NULL DEFAULT 0,
			last_fetch_time   INTEGER,
			last_fetch_count  INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL,
			UNIQUE(symbol, interval, source)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("cache schema: %w", err)
		}
	}
	return nil
}
