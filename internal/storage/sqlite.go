package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"device-reservation/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteProvider struct {
	SQLProvider
}

// sqliteDSN builds a go-sqlite3 data source. Transactions start with BEGIN
// IMMEDIATE so a read-then-write sequence holds the write lock from the start.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return ":memory:?_txlock=immediate"
	}
	return fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
}

func NewSQLiteProvider(config *config.Storage, loc *time.Location) (*SQLiteProvider, error) {
	path := config.SQLite.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	provider, err := NewSQLProvider(config, "sqlite3", sqliteDSN(path), loc)
	if err != nil {
		return nil, err
	}

	// One connection serializes writers and keeps :memory: databases alive.
	provider.db.SetMaxOpenConns(1)
	provider.db.SetMaxIdleConns(1)
	provider.db.SetConnMaxLifetime(0)

	return &SQLiteProvider{SQLProvider: *provider}, nil
}
