package enhancer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/fragcache"
	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
	"github.com/lepinkainen/rss-enhancer/pkg/rss"
	"github.com/lepinkainen/rss-enhancer/pkg/testutil"
)

const stylesheetPI = `<?xml-stylesheet type="text/xsl" href="/rss/styles.xsl"?>`

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
` + stylesheetPI + `
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com/</link>
    <description>Notes</description>
    <item>
      <title>Hello World [[lastmod:2024-03-01T10:00:00Z]]</title>
      <link>https://example.com/posts/hello-world/</link>
      <description></description>
    </item>
    <item>
      <title>Missing Post [[lastmod: 2024-03-02]]</title>
      <link>https://example.com/posts/missing-post/</link>
      <description>Kept</description>
      <content:encoded><![CDATA[<p>Keep me</p>]]></content:encoded>
    </item>
    <item>
      <title>Flat</title>
      <link>https://example.com/posts/flat.html</link>
      <description>Flat description</description>
    </item>
  </channel>
</rss>
`

const helloPage = `<!DOCTYPE html>
<html><head><meta name="description" content="Meta summary for hello"></head>
<body><nav>menu</nav><article><div class="post-content">
<p>Body text with <a href="/posts/second/">a link</a>.</p>
<img src="cover.jpg" alt="cover">
<div id="comments">comment thread</div>
</div></article></body></html>`

const flatPage = `<html><body><main><p>Flat page content</p></main></body></html>`

var (
	testNow    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	markerTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	buildDir string
	feedPath string
	store    *fragcache.FileStore
	cleaner  *htmlclean.Cleaner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	buildDir := t.TempDir()
	testutil.WriteFixture(t, filepath.Join(buildDir, "rss.xml"), testFeed)
	testutil.WriteFixture(t, filepath.Join(buildDir, "posts", "hello-world", "index.html"), helloPage)
	testutil.WriteFixture(t, filepath.Join(buildDir, "posts", "flat.html"), flatPage)

	store, err := fragcache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	opts := htmlclean.DefaultOptions()
	opts.SiteURL = "https://example.com/"
	cleaner, err := htmlclean.New(opts)
	if err != nil {
		t.Fatalf("htmlclean.New() error = %v", err)
	}

	return &fixture{
		buildDir: buildDir,
		feedPath: filepath.Join(buildDir, "rss.xml"),
		store:    store,
		cleaner:  cleaner,
	}
}

func (f *fixture) run(t *testing.T, mutate func(*Options)) *Summary {
	t.Helper()

	opts := Options{
		BuildDir: f.buildDir,
		Now:      func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&opts)
	}

	e, err := New(opts, f.cleaner, f.store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return summary
}

func (f *fixture) output(t *testing.T) (*rss.Document, string) {
	t.Helper()

	data, err := os.ReadFile(f.feedPath)
	if err != nil {
		t.Fatalf("failed to read output feed: %v", err)
	}
	doc, err := rss.Parse(data)
	if err != nil {
		t.Fatalf("failed to parse output feed: %v", err)
	}
	return doc, string(data)
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	logs := testutil.CaptureLogs(t)

	summary := f.run(t, nil)

	if summary.Total != 3 || summary.Enhanced != 2 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}

	doc, raw := f.output(t)
	items := doc.Items()
	if len(items) != 3 {
		t.Fatalf("output has %d items, want 3", len(items))
	}

	if !strings.Contains(raw, stylesheetPI) {
		t.Errorf("stylesheet instruction missing from output:\n%s", raw)
	}

	hello := items[0]
	if hello.Title != "Hello World" {
		t.Errorf("title = %q, want marker stripped", hello.Title)
	}
	for _, want := range []string{
		"Body text with",
		`href="https://example.com/posts/second/"`,
		`src="https://example.com/posts/hello-world/cover.jpg"`,
	} {
		if !strings.Contains(hello.Content, want) {
			t.Errorf("hello content missing %q: %s", want, hello.Content)
		}
	}
	if strings.Contains(hello.Content, "comment thread") || strings.Contains(hello.Content, "menu") {
		t.Errorf("hello content kept site chrome: %s", hello.Content)
	}
	if hello.Description != "Meta summary for hello" {
		t.Errorf("description = %q, want synthesized from meta", hello.Description)
	}

	missing := items[1]
	if missing.Title != "Missing Post" {
		t.Errorf("missing title = %q, want marker stripped", missing.Title)
	}
	if missing.Content != "<p>Keep me</p>" {
		t.Errorf("missing content = %q, want original content untouched", missing.Content)
	}
	if missing.Description != "Kept" {
		t.Errorf("missing description = %q", missing.Description)
	}

	flat := items[2]
	if !strings.Contains(flat.Content, "Flat page content") {
		t.Errorf("flat content = %q", flat.Content)
	}
	if flat.Description != "Flat description" {
		t.Errorf("existing description overwritten: %q", flat.Description)
	}

	logged := logs.String()
	if !strings.Contains(logged, "level=ERROR") || !strings.Contains(logged, "slug=missing-post") {
		t.Errorf("expected an error log for the missing page, got:\n%s", logged)
	}

	entry, ok, err := f.store.Get("hello-world")
	if err != nil || !ok {
		t.Fatalf("cache entry missing: ok %v, err %v", ok, err)
	}
	if entry.HTML != hello.Content {
		t.Errorf("cached fragment differs from item content")
	}

	last, err := f.store.LastBuild()
	if err != nil || !last.Equal(testNow) {
		t.Errorf("LastBuild() = %v, %v; want %v", last, err, testNow)
	}
}

func TestRun_ReusesFreshCache(t *testing.T) {
	f := newFixture(t)

	cached := `<p>cached <em>verbatim</em></p>`
	if err := f.store.Put(fragcache.Entry{Slug: "hello-world", HTML: cached, StoredAt: markerTime.Add(24 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	summary := f.run(t, nil)
	if summary.Cached != 1 {
		t.Errorf("Cached = %d, want 1", summary.Cached)
	}
	if summary.Items[0].Status != StatusCached {
		t.Errorf("status = %s, want %s", summary.Items[0].Status, StatusCached)
	}

	doc, _ := f.output(t)
	if got := doc.Items()[0].Content; got != cached {
		t.Errorf("content = %q, want cached fragment verbatim", got)
	}
	if got := doc.Items()[0].Description; got != "Meta summary for hello" {
		t.Errorf("description = %q, want synthesized for cached item", got)
	}
}

func TestRun_StaleCacheIsRecomputed(t *testing.T) {
	tests := []struct {
		name     string
		storedAt time.Time
		prev     time.Time
		noCache  bool
	}{
		{"edited after entry was stored", markerTime.Add(-24 * time.Hour), time.Time{}, false},
		{"edited after previous build", markerTime.Add(24 * time.Hour), markerTime.Add(-time.Hour), false},
		{"cache disabled", markerTime.Add(24 * time.Hour), time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.store.Put(fragcache.Entry{Slug: "hello-world", HTML: "<p>stale</p>", StoredAt: tt.storedAt}); err != nil {
				t.Fatal(err)
			}

			summary := f.run(t, func(o *Options) {
				o.PreviousBuild = tt.prev
				o.NoCache = tt.noCache
			})
			if summary.Items[0].Status != StatusEnhanced {
				t.Errorf("status = %s, want %s", summary.Items[0].Status, StatusEnhanced)
			}

			doc, _ := f.output(t)
			if got := doc.Items()[0].Content; !strings.Contains(got, "Body text") {
				t.Errorf("content = %q, want recomputed fragment", got)
			}

			entry, _, _ := f.store.Get("hello-world")
			if !strings.Contains(entry.HTML, "Body text") {
				t.Errorf("cache entry not refreshed: %q", entry.HTML)
			}
		})
	}
}

func TestRun_StoredPreviousBuild(t *testing.T) {
	f := newFixture(t)

	if err := f.store.Put(fragcache.Entry{Slug: "hello-world", HTML: "<p>stale</p>", StoredAt: markerTime.Add(24 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetLastBuild(markerTime.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	summary := f.run(t, nil)
	if !summary.PreviousBuild.Equal(markerTime.Add(-time.Hour)) {
		t.Errorf("PreviousBuild = %v, want stored stamp", summary.PreviousBuild)
	}
	if summary.Items[0].Status != StatusEnhanced {
		t.Errorf("status = %s, want recompute after an edit newer than the stored build", summary.Items[0].Status)
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)

	summary := f.run(t, func(o *Options) { o.DryRun = true })
	if summary.Enhanced != 2 {
		t.Errorf("Enhanced = %d, want 2", summary.Enhanced)
	}
	if !strings.Contains(summary.Items[0].Item.Content, "Body text") {
		t.Errorf("dry run should still enhance items in memory")
	}

	data, err := os.ReadFile(f.feedPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != testFeed {
		t.Error("dry run modified the feed file")
	}

	if _, ok, _ := f.store.Get("hello-world"); ok {
		t.Error("dry run wrote to the cache")
	}
	if last, _ := f.store.LastBuild(); !last.IsZero() {
		t.Errorf("dry run recorded a build time: %v", last)
	}
}

// panicStore panics on lookups to exercise per-item recovery
type panicStore struct {
	fragcache.Store
}

func (panicStore) Get(slug string) (fragcache.Entry, bool, error) {
	if slug == "hello-world" {
		panic("corrupt cache")
	}
	return fragcache.Entry{}, false, nil
}

func TestRun_RecoversFromPanics(t *testing.T) {
	f := newFixture(t)
	testutil.CaptureLogs(t)

	e, err := New(Options{BuildDir: f.buildDir, DryRun: true}, f.cleaner, panicStore{Store: f.store})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 || summary.Items[0].Status != StatusFailed {
		t.Errorf("expected the first item to fail, summary = %+v", summary)
	}
	if !strings.Contains(summary.Items[0].Error, "corrupt cache") {
		t.Errorf("error = %q", summary.Items[0].Error)
	}
	if summary.Items[2].Status != StatusEnhanced {
		t.Errorf("processing should continue after a panic, got %s", summary.Items[2].Status)
	}
}

func TestRun_MissingFeed(t *testing.T) {
	f := newFixture(t)
	e, err := New(Options{BuildDir: f.buildDir, FeedFile: "nope.xml"}, f.cleaner, f.store)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(); err == nil {
		t.Error("Run() with a missing feed should fail")
	}
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)

	if _, err := New(Options{}, f.cleaner, f.store); err == nil {
		t.Error("New() without a build directory should fail")
	}
	if _, err := New(Options{BuildDir: f.buildDir, MarkerPattern: `lastmod`}, f.cleaner, f.store); err == nil {
		t.Error("New() with a marker pattern lacking a group should fail")
	}
	if _, err := New(Options{BuildDir: f.buildDir}, nil, f.store); err == nil {
		t.Error("New() without a cleaner should fail")
	}
}

func TestLocatePage(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFixture(t, filepath.Join(f.buildDir, "notes", "deep", "index.html"), flatPage)

	e, err := New(Options{BuildDir: f.buildDir}, f.cleaner, f.store)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		link    string
		slug    string
		want    string
		wantErr bool
	}{
		{"https://example.com/posts/hello-world/", "hello-world", "posts/hello-world/index.html", false},
		{"https://example.com/posts/flat.html", "flat", "posts/flat.html", false},
		{"https://example.com/notes/deep/", "deep", "notes/deep/index.html", false},
		{"https://example.com/2024/03/flat/", "flat", "posts/flat.html", false},
		{"https://example.com/posts/missing/", "missing", "", true},
		{"https://example.com/x/", "../../etc/passwd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got, err := e.locatePage(tt.link, tt.slug)
			if tt.wantErr {
				if err == nil {
					t.Errorf("locatePage() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("locatePage() error = %v", err)
			}
			if want := filepath.Join(f.buildDir, filepath.FromSlash(tt.want)); got != want {
				t.Errorf("locatePage() = %q, want %q", got, want)
			}
		})
	}
}

func TestIsFresh(t *testing.T) {
	stored := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := fragcache.Entry{Slug: "a", HTML: "<p>a</p>", StoredAt: stored}

	tests := []struct {
		name     string
		modified time.Time
		prev     time.Time
		want     bool
	}{
		{"no marker", time.Time{}, time.Time{}, true},
		{"no marker ignores previous build", time.Time{}, stored.Add(-48 * time.Hour), true},
		{"edit before entry", stored.Add(-time.Hour), time.Time{}, true},
		{"edit after entry", stored.Add(time.Hour), time.Time{}, false},
		{"edit before previous build", stored.Add(-time.Hour), stored, true},
		{"edit after previous build", stored.Add(-time.Hour), stored.Add(-2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(entry, tt.modified, tt.prev); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
