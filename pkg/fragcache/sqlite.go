package fragcache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/database"
)

const lastBuildKey = "last_build"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS rss_fragments (
		key TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		html TEXT NOT NULL,
		stored_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rss_meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// SQLiteStore keeps fragments in a SQLite database
type SQLiteStore struct {
	db *database.Database
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path and initializes its tables
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := database.Open(database.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open fragment database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if err := db.ExecuteSchema(stmt); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("Failed to close database", "error", closeErr)
			}
			return nil, fmt.Errorf("failed to initialize fragment database: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Get loads the fragment for slug
func (s *SQLiteStore) Get(slug string) (Entry, bool, error) {
	var (
		stored   string
		html     string
		storedAt int64
	)

	err := s.db.QueryRow(`SELECT slug, html, stored_at FROM rss_fragments WHERE key = ?`, Key(slug)).Scan(&stored, &html, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query cache entry %s: %w", slug, err)
	}
	if stored != slug {
		slog.Debug("Cache key belongs to another slug", "slug", slug, "stored", stored)
		return Entry{}, false, nil
	}

	return Entry{Slug: slug, HTML: html, StoredAt: time.Unix(0, storedAt)}, true, nil
}

// Put upserts the fragment
func (s *SQLiteStore) Put(entry Entry) error {
	entry = stamp(entry)

	err := s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO rss_fragments (key, slug, html, stored_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET slug = excluded.slug, html = excluded.html, stored_at = excluded.stored_at`,
			Key(entry.Slug), entry.Slug, entry.HTML, entry.StoredAt.UnixNano())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", entry.Slug, err)
	}

	slog.Debug("Stored fragment", "slug", entry.Slug, "db", s.db.Path(), "bytes", len(entry.HTML))
	return nil
}

// Delete removes the fragment for slug
func (s *SQLiteStore) Delete(slug string) error {
	err := s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM rss_fragments WHERE key = ?`, Key(slug))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", slug, err)
	}
	return nil
}

// Clear empties both tables
func (s *SQLiteStore) Clear() error {
	var removed int64
	err := s.db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM rss_fragments`)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		_, err = tx.Exec(`DELETE FROM rss_meta`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear fragment cache: %w", err)
	}

	slog.Info("Cleared fragment cache", "db", s.db.Path(), "entries", removed)
	return nil
}

// Stats aggregates the fragments table
func (s *SQLiteStore) Stats() (Stats, error) {
	stats := Stats{Backend: BackendSQLite, Location: s.db.Path()}

	var oldest, newest int64
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(CAST(html AS BLOB))), 0),
		       COALESCE(MIN(stored_at), 0), COALESCE(MAX(stored_at), 0)
		FROM rss_fragments`).Scan(&stats.Entries, &stats.Bytes, &oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("failed to query cache stats: %w", err)
	}

	if stats.Entries > 0 {
		stats.Oldest = time.Unix(0, oldest)
		stats.Newest = time.Unix(0, newest)
	}

	stats.LastBuild, err = s.LastBuild()
	return stats, err
}

// LastBuild reads the build stamp from rss_meta
func (s *SQLiteStore) LastBuild() (time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM rss_meta WHERE name = ?`, lastBuildKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read build stamp: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse build stamp: %w", err)
	}
	return t, nil
}

// SetLastBuild records the build stamp
func (s *SQLiteStore) SetLastBuild(t time.Time) error {
	err := s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO rss_meta (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
			lastBuildKey, t.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write build stamp: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
