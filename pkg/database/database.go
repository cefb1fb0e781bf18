// Package database wraps a SQLite connection with the pragmas and locking
// used by the on-disk caches.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
)

var (
	// openDatabases stores active connections keyed by path
	openDatabases = make(map[string]*Database)
	openMutex     = &sync.Mutex{}
)

// Database is a thread-safe SQLite connection
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	refs   int
}

// Config holds database configuration
type Config struct {
	Path    string
	Timeout time.Duration
}

// DefaultConfig returns the default database configuration for path
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Open opens (or reuses) the database at config.Path, creating its directory if needed
func Open(config Config) (*Database, error) {
	openMutex.Lock()
	defer openMutex.Unlock()

	if db, ok := openDatabases[config.Path]; ok {
		db.refs++
		return db, nil
	}

	if config.Path != ":memory:" {
		if err := filesystem.EnsureDirectoryExists(config.Path); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configure(db, config); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
		return nil, err
	}

	database := &Database{
		db:     db,
		dbPath: config.Path,
		refs:   1,
	}
	openDatabases[config.Path] = database

	slog.Debug("Opened database", "path", config.Path)
	return database, nil
}

func configure(db *sql.DB, config Config) error {
	// One long-lived connection keeps per-connection pragmas and :memory: databases intact
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", config.Timeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if config.Path != ":memory:" {
		var journalMode string
		if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
			return fmt.Errorf("failed to read journal mode: %w", err)
		}
		if !strings.EqualFold(journalMode, "wal") {
			if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
				return fmt.Errorf("failed to enable WAL: %w", err)
			}
		}
	}

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close releases this handle; the connection closes when the last handle is released
func (db *Database) Close() error {
	openMutex.Lock()
	defer openMutex.Unlock()

	db.refs--
	if db.refs > 0 {
		return nil
	}
	delete(openDatabases, db.dbPath)

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == nil {
		return nil
	}
	err := db.db.Close()
	db.db = nil
	return err
}

// DB returns the underlying sql.DB instance
func (db *Database) DB() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db
}

// Path returns the database file path
func (db *Database) Path() string {
	return db.dbPath
}

// ExecuteSchema executes a schema statement
func (db *Database) ExecuteSchema(schema string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Transaction executes fn within a transaction, rolling back on error or panic
func (db *Database) Transaction(fn func(*sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				slog.Error("Failed to rollback transaction", "error", rollbackErr)
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.Error("Failed to rollback transaction", "error", rollbackErr)
		}
		return err
	}

	return tx.Commit()
}

// QueryRow runs a single-row query under the read lock
func (db *Database) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db.QueryRow(query, args...)
}

// Query runs a query under the read lock
func (db *Database) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db.Query(query, args...)
}
