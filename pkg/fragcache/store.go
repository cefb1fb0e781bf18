// Package fragcache persists sanitized post fragments between builds.
package fragcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-slug"
)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Entry is one cached fragment
type Entry struct {
	Slug     string
	HTML     string
	StoredAt time.Time
}

// Stats summarizes the contents of a store
type Stats struct {
	Backend   string    `yaml:"backend"`
	Location  string    `yaml:"location"`
	Entries   int       `yaml:"entries"`
	Bytes     int64     `yaml:"bytes"`
	Oldest    time.Time `yaml:"oldest,omitempty"`
	Newest    time.Time `yaml:"newest,omitempty"`
	LastBuild time.Time `yaml:"last_build,omitempty"`
}

// Store is a slug-keyed fragment cache with a previous-build stamp
type Store interface {
	// Get returns the entry for slug; ok is false when there is none
	Get(slug string) (entry Entry, ok bool, err error)
	// Put stores entry, stamping it with the current time when StoredAt is zero
	Put(entry Entry) error
	Delete(slug string) error
	// Clear removes every entry and the build stamp
	Clear() error
	Stats() (Stats, error)
	// LastBuild returns the stamp recorded by SetLastBuild, or the zero time
	LastBuild() (time.Time, error)
	SetLastBuild(t time.Time) error
	Close() error
}

// Open returns the store for backend rooted at dir
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "fragments.db"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Key normalizes a slug into a filesystem and database safe key.
// A slug that normalization changes gets a short hash of the original
// appended, so distinct slugs never share a key.
func Key(s string) string {
	sum := sha256.Sum256([]byte(s))
	digest := hex.EncodeToString(sum[:4])

	normalized, err := slug.Normalize(s)
	if err != nil || normalized == "" || !slug.IsValid(normalized) {
		return "h-" + hex.EncodeToString(sum[:8])
	}
	if normalized == s {
		return normalized
	}
	return normalized + "--" + digest
}

func stamp(entry Entry) Entry {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
	return entry
}
