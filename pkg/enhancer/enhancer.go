// Package enhancer replaces the summaries in a generated RSS feed with the
// sanitized full text of each post, reusing cached fragments between builds.
package enhancer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
	"github.com/lepinkainen/rss-enhancer/pkg/fragcache"
	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
	"github.com/lepinkainen/rss-enhancer/pkg/pagemeta"
	"github.com/lepinkainen/rss-enhancer/pkg/rss"
	"github.com/lepinkainen/rss-enhancer/pkg/urlutils"
)

// ErrPageNotFound is returned when no rendered page exists for a feed item
var ErrPageNotFound = errors.New("rendered page not found")

// DefaultDescriptionLength is the rune limit for synthesized descriptions
const DefaultDescriptionLength = 280

// Options configures a run
type Options struct {
	// BuildDir is the site generator's output directory
	BuildDir string
	// FeedFile is the feed path relative to BuildDir
	FeedFile string
	// PostsDir is the directory under BuildDir holding per-slug pages
	PostsDir string

	MarkerPattern     string
	PreviousBuild     time.Time
	NoCache           bool
	DryRun            bool
	DescriptionLength int

	// Now returns the build time; defaults to time.Now
	Now func() time.Time
}

// Enhancer processes one feed per Run
type Enhancer struct {
	opts    Options
	cleaner *htmlclean.Cleaner
	store   fragcache.Store
	marker  *MarkerParser
}

// New validates opts and returns an Enhancer
func New(opts Options, cleaner *htmlclean.Cleaner, store fragcache.Store) (*Enhancer, error) {
	if strings.TrimSpace(opts.BuildDir) == "" {
		return nil, errors.New("build directory is not set")
	}
	if cleaner == nil {
		return nil, errors.New("cleaner is required")
	}
	if store == nil {
		return nil, errors.New("cache store is required")
	}

	if opts.FeedFile == "" {
		opts.FeedFile = "rss.xml"
	}
	if opts.PostsDir == "" {
		opts.PostsDir = "posts"
	}
	if opts.DescriptionLength <= 0 {
		opts.DescriptionLength = DefaultDescriptionLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	marker, err := NewMarkerParser(opts.MarkerPattern)
	if err != nil {
		return nil, err
	}

	return &Enhancer{
		opts:    opts,
		cleaner: cleaner,
		store:   store,
		marker:  marker,
	}, nil
}

// FeedPath returns the absolute location of the feed document
func (e *Enhancer) FeedPath() (string, error) {
	return filesystem.JoinWithin(e.opts.BuildDir, filepath.FromSlash(e.opts.FeedFile))
}

// Run enhances every item of the feed and rewrites it in place
func (e *Enhancer) Run() (*Summary, error) {
	start := time.Now()
	buildTime := e.opts.Now()

	feedPath, err := e.FeedPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feed path: %w", err)
	}

	doc, err := rss.ParseFile(feedPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		FeedPath:      feedPath,
		BuildTime:     buildTime,
		PreviousBuild: e.previousBuild(),
		DryRun:        e.opts.DryRun,
		Document:      doc,
	}

	slog.Info("Enhancing feed", "feed", feedPath, "items", len(doc.Items()), "previous_build", summary.PreviousBuild)

	for i, item := range doc.Items() {
		res := e.safeProcess(i, item, summary.PreviousBuild)
		summary.add(res)
	}

	if !e.opts.DryRun {
		if err := doc.WriteFile(feedPath); err != nil {
			return summary, err
		}
		if err := e.store.SetLastBuild(buildTime); err != nil {
			return summary, fmt.Errorf("failed to record build time: %w", err)
		}
	}

	summary.Duration = time.Since(start)
	slog.Info("Feed enhanced",
		"feed", feedPath,
		"enhanced", summary.Enhanced,
		"cached", summary.Cached,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary, nil
}

// previousBuild prefers the configured timestamp over the stored stamp
func (e *Enhancer) previousBuild() time.Time {
	if !e.opts.PreviousBuild.IsZero() {
		return e.opts.PreviousBuild
	}

	last, err := e.store.LastBuild()
	if err != nil {
		slog.Warn("Failed to read previous build time", "error", err)
		return time.Time{}
	}
	return last
}

// safeProcess runs processItem and turns errors and panics into a result
func (e *Enhancer) safeProcess(index int, item *rss.Item, prevBuild time.Time) (res ItemResult) {
	res = ItemResult{Index: index, Link: item.Link, Item: item}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing item", "index", index, "slug", res.Slug, "panic", r, "stack", string(debug.Stack()))
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Title = item.Title
			res.ContentLength = len(item.Content)
		}
	}()

	if err := e.processItem(&res, item, prevBuild); err != nil {
		res.Error = err.Error()
		if res.Status == "" {
			res.Status = StatusFailed
		}
		if res.Status == StatusSkipped {
			slog.Error("Skipping item", "index", index, "slug", res.Slug, "link", item.Link, "error", err)
		} else {
			slog.Error("Failed to process item", "index", index, "slug", res.Slug, "link", item.Link, "error", err)
		}
	}

	res.Title = item.Title
	res.ContentLength = len(item.Content)
	return res
}

func (e *Enhancer) processItem(res *ItemResult, item *rss.Item, prevBuild time.Time) error {
	title, modified := e.marker.Extract(item.Title)
	item.Title = title
	res.Title = title
	res.Modified = modified

	slug, err := urlutils.SlugFromLink(item.Link)
	if err != nil {
		res.Status = StatusSkipped
		return err
	}
	res.Slug = slug

	pagePath, err := e.locatePage(item.Link, slug)
	if err != nil {
		res.Status = StatusSkipped
		return err
	}
	res.Page = pagePath

	if entry, ok := e.cachedEntry(slug, modified, prevBuild); ok {
		item.Content = entry.HTML
		res.Status = StatusCached
		if strings.TrimSpace(item.Description) == "" {
			item.Description = e.describeFromPage(pagePath, entry.HTML)
		}
		slog.Debug("Reused cached fragment", "slug", slug, "stored_at", entry.StoredAt)
		return nil
	}

	fragment, meta, err := e.renderPage(pagePath, item.Link)
	if err != nil {
		res.Status = StatusSkipped
		return err
	}

	if !e.opts.DryRun {
		if err := e.store.Put(fragcache.Entry{Slug: slug, HTML: fragment, StoredAt: e.opts.Now()}); err != nil {
			slog.Warn("Failed to cache fragment", "slug", slug, "error", err)
		}
	}

	item.Content = fragment
	if strings.TrimSpace(item.Description) == "" {
		item.Description = Describe(meta.Description, fragment, e.opts.DescriptionLength)
	}

	res.Status = StatusEnhanced
	slog.Debug("Enhanced item", "slug", slug, "bytes", len(fragment))
	return nil
}

// cachedEntry returns the cache entry for slug when it may be reused
func (e *Enhancer) cachedEntry(slug string, modified, prevBuild time.Time) (fragcache.Entry, bool) {
	if e.opts.NoCache {
		return fragcache.Entry{}, false
	}

	entry, ok, err := e.store.Get(slug)
	if err != nil {
		slog.Warn("Failed to read cache entry", "slug", slug, "error", err)
		return fragcache.Entry{}, false
	}
	if !ok || !IsFresh(entry, modified, prevBuild) {
		return fragcache.Entry{}, false
	}
	return entry, true
}

// IsFresh reports whether entry can be reused for a post last modified at modified.
// A zero modified time means the post carries no marker.
func IsFresh(entry fragcache.Entry, modified, prevBuild time.Time) bool {
	if modified.IsZero() {
		return true
	}
	if modified.After(entry.StoredAt) {
		return false
	}
	if !prevBuild.IsZero() && modified.After(prevBuild) {
		return false
	}
	return true
}

// locatePage finds the rendered HTML file for an item inside the build directory
func (e *Enhancer) locatePage(link, slug string) (string, error) {
	var candidates []string

	if rel := e.relativePagePath(link); rel != "" {
		candidates = append(candidates,
			filepath.Join(filepath.FromSlash(rel), "index.html"),
			filepath.FromSlash(rel)+".html",
		)
	}
	candidates = append(candidates,
		filepath.Join(filepath.FromSlash(e.opts.PostsDir), slug, "index.html"),
		filepath.Join(filepath.FromSlash(e.opts.PostsDir), slug+".html"),
	)

	for _, candidate := range candidates {
		p, err := filesystem.JoinWithin(e.opts.BuildDir, candidate)
		if err != nil {
			slog.Debug("Rejected page candidate", "candidate", candidate, "error", err)
			continue
		}
		if filesystem.FileExists(p) {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s (looked in %s)", ErrPageNotFound, slug, e.opts.BuildDir)
}

// relativePagePath maps a link onto the build directory, dropping the site base path
func (e *Enhancer) relativePagePath(link string) string {
	linkPath, err := urlutils.LinkPath(link)
	if err != nil {
		return ""
	}

	base := strings.TrimSuffix(e.cleaner.SiteURL().Path, "/")
	rel := strings.TrimPrefix(linkPath, base)
	return strings.Trim(rel, "/")
}

// renderPage reads and cleans one rendered page
func (e *Enhancer) renderPage(pagePath, link string) (string, pagemeta.Data, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", pagemeta.Data{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	doc, err := htmlclean.ParseDocument(f)
	if err != nil {
		return "", pagemeta.Data{}, err
	}

	var meta pagemeta.Data
	if len(doc.Nodes) > 0 {
		meta = pagemeta.Extract(doc.Nodes[0])
	}

	fragment, err := e.cleaner.Clean(doc, link)
	if err != nil {
		return "", meta, fmt.Errorf("failed to clean page: %w", err)
	}
	return fragment, meta, nil
}

// describeFromPage builds a description for a cached item, reading only the page metadata
func (e *Enhancer) describeFromPage(pagePath, fragment string) string {
	var declared string

	f, err := os.Open(pagePath)
	if err == nil {
		defer f.Close()
		if doc, err := htmlclean.ParseDocument(f); err == nil && len(doc.Nodes) > 0 {
			declared = pagemeta.Extract(doc.Nodes[0]).Description
		}
	}

	return Describe(declared, fragment, e.opts.DescriptionLength)
}
