package fragcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
)

const (
	fragmentExt   = ".html"
	lastBuildFile = ".last-build"
)

// FileStore keeps one <key>.html file per slug. The file mtime is the stored time.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the cache directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, Key(slug)+fragmentExt)
}

// Get reads the fragment for slug
func (s *FileStore) Get(slug string) (Entry, bool, error) {
	p := s.path(slug)

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to stat cache entry %s: %w", slug, err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry %s: %w", slug, err)
	}

	return Entry{Slug: slug, HTML: string(data), StoredAt: info.ModTime()}, true, nil
}

// Put writes the fragment atomically and sets its mtime to the stored time
func (s *FileStore) Put(entry Entry) error {
	entry = stamp(entry)
	p := s.path(entry.Slug)

	if err := filesystem.WriteFileAtomic(p, []byte(entry.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", entry.Slug, err)
	}
	if err := os.Chtimes(p, entry.StoredAt, entry.StoredAt); err != nil {
		return fmt.Errorf("failed to set cache entry time %s: %w", entry.Slug, err)
	}

	slog.Debug("Stored fragment", "slug", entry.Slug, "path", p, "bytes", len(entry.HTML))
	return nil
}

// Delete removes the fragment for slug; deleting a missing entry is not an error
func (s *FileStore) Delete(slug string) error {
	if err := os.Remove(s.path(slug)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry %s: %w", slug, err)
	}
	return nil
}

// Clear removes every fragment and the build stamp, leaving other files alone
func (s *FileStore) Clear() error {
	files, err := s.fragments()
	if err != nil {
		return err
	}

	for _, f := range append(files, filepath.Join(s.dir, lastBuildFile)) {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}

	slog.Info("Cleared fragment cache", "dir", s.dir, "entries", len(files))
	return nil
}

// Stats scans the cache directory
func (s *FileStore) Stats() (Stats, error) {
	stats := Stats{Backend: BackendFile, Location: s.dir}

	files, err := s.fragments()
	if err != nil {
		return stats, err
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return stats, fmt.Errorf("failed to stat %s: %w", f, err)
		}
		stats.Entries++
		stats.Bytes += info.Size()

		mod := info.ModTime()
		if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
			stats.Oldest = mod
		}
		if mod.After(stats.Newest) {
			stats.Newest = mod
		}
	}

	stats.LastBuild, err = s.LastBuild()
	return stats, err
}

// LastBuild reads the stamp file
func (s *FileStore) LastBuild() (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, lastBuildFile))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read build stamp: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse build stamp: %w", err)
	}
	return t, nil
}

// SetLastBuild writes the stamp file
func (s *FileStore) SetLastBuild(t time.Time) error {
	data := []byte(t.UTC().Format(time.RFC3339Nano) + "\n")
	if err := filesystem.WriteFileAtomic(filepath.Join(s.dir, lastBuildFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write build stamp: %w", err)
	}
	return nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) fragments() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*"+fragmentExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}
	return files, nil
}
