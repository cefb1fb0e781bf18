package htmlclean

import (
	"errors"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Hello</title></head><body>
<nav>Site menu</nav>
<article><div class="post-content">
<h1>Hello</h1>
<p onclick="track()" style="color:red">Intro <a href="/posts/other/">other</a> and <a href="rel/page.html">rel</a> <a href="#notes">notes</a> <a href="https://elsewhere.org/">ext</a></p>
<img class="emoji" src="/e.png" alt=":)">
<img src="/img/badge.png" width="16" height="16" alt="tiny">
<img src="img/photo.jpg" srcset="img/photo.jpg 1x, /img/photo@2x.jpg 2x" alt="photo" width="800" height="600">
<p>See <span data-popover data-href="/posts/linked/">Linked post<span class="popover-content">Preview text</span></span> and <span class="popover" data-href="https://elsewhere.org/x">External<span class="popover-content">hidden preview</span></span>.</p>
<div class="comments">A comment</div>
<div class="media-links"><a href="/feed.xml">RSS</a></div>
<div><span></span></div>
<script>alert(1)</script>
<iframe src="https://video.example/embed/x"></iframe>
</div></article>
<footer>Footer text</footer>
</body></html>`

func newTestCleaner(t *testing.T, mutate func(*Options)) *Cleaner {
	t.Helper()

	opts := DefaultOptions()
	opts.SiteURL = "https://example.com/"
	if mutate != nil {
		mutate(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func cleanString(t *testing.T, c *Cleaner, page, pageURL string) string {
	t.Helper()

	doc, err := ParseDocument(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	out, err := c.Clean(doc, pageURL)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	return out
}

func TestNew_InvalidSiteURL(t *testing.T) {
	for _, site := range []string{"", "/relative/", "ftp://example.com/", "example.com"} {
		t.Run(site, func(t *testing.T) {
			opts := DefaultOptions()
			opts.SiteURL = site
			if _, err := New(opts); err == nil {
				t.Errorf("New(%q) expected error", site)
			}
		})
	}
}

func TestClean(t *testing.T) {
	c := newTestCleaner(t, nil)
	got := cleanString(t, c, samplePage, "https://example.com/posts/hello/")

	mustContain := []string{
		"<h1>Hello</h1>",
		`href="https://example.com/posts/other/"`,
		`href="https://example.com/posts/hello/rel/page.html"`,
		`href="#notes"`,
		`href="https://elsewhere.org/"`,
		`src="https://example.com/posts/hello/img/photo.jpg"`,
		"https://example.com/img/photo@2x.jpg 2x",
		`<a href="https://example.com/posts/linked/">Linked post</a>`,
		"External",
	}
	for _, want := range mustContain {
		if !strings.Contains(got, want) {
			t.Errorf("Clean() output missing %q\n%s", want, got)
		}
	}

	mustNotContain := []string{
		"Site menu",
		"Footer text",
		"onclick",
		"style=",
		"alert",
		"<script",
		"<iframe",
		"A comment",
		"feed.xml",
		"e.png",
		"badge.png",
		"Preview text",
		"hidden preview",
		"elsewhere.org/x",
		"data-popover",
		"<span></span>",
		"<div></div>",
	}
	for _, unwanted := range mustNotContain {
		if strings.Contains(got, unwanted) {
			t.Errorf("Clean() output should not contain %q\n%s", unwanted, got)
		}
	}
}

func TestClean_ContentSelectorOrder(t *testing.T) {
	page := `<html><body><main><p>Main text</p></main><article><p>Article text</p></article></body></html>`
	c := newTestCleaner(t, nil)

	got := cleanString(t, c, page, "/posts/a/")
	if !strings.Contains(got, "Article text") || strings.Contains(got, "Main text") {
		t.Errorf("Clean() should prefer article over main, got %q", got)
	}
}

func TestClean_NoContent(t *testing.T) {
	c := newTestCleaner(t, func(o *Options) {
		o.ReadabilityFallback = false
	})

	doc, err := ParseDocument(strings.NewReader(`<html><body><div>No region here</div></body></html>`))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	_, err = c.Clean(doc, "https://example.com/posts/a/")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Clean() error = %v, want ErrNoContent", err)
	}
}

func TestClean_ReadabilityFallback(t *testing.T) {
	paragraph := "This is a long paragraph of real article prose, written so that the readability scorer has enough commas, sentences and characters to consider it the main content of the page. "
	var body strings.Builder
	body.WriteString(`<html><head><title>Fallback</title></head><body><div class="sidebar"><a href="/">Home</a></div><div id="story">`)
	for range 6 {
		body.WriteString("<p>" + paragraph + paragraph + "</p>")
	}
	body.WriteString(`</div></body></html>`)

	c := newTestCleaner(t, nil)
	got := cleanString(t, c, body.String(), "https://example.com/posts/fallback/")

	if !strings.Contains(got, "readability scorer") {
		t.Errorf("Clean() fallback output missing article prose: %q", got)
	}
}

func TestClean_PopoverWithoutLabelUsesSlug(t *testing.T) {
	page := `<html><body><article><p>Read <span data-popover data-href="/posts/empty-label/"><span class="popover-content">Only preview</span></span> now</p></article></body></html>`
	c := newTestCleaner(t, nil)

	got := cleanString(t, c, page, "https://example.com/posts/a/")
	want := `<a href="https://example.com/posts/empty-label/">empty-label</a>`
	if !strings.Contains(got, want) {
		t.Errorf("Clean() = %q, want it to contain %q", got, want)
	}
}

func TestClean_PopoverOutsidePosts(t *testing.T) {
	page := `<html><body><article><p>Tag <span data-popover data-href="/tags/go/">go<span class="popover-content">All Go posts</span></span></p></article></body></html>`
	c := newTestCleaner(t, nil)

	got := cleanString(t, c, page, "https://example.com/posts/a/")
	if strings.Contains(got, "<a") {
		t.Errorf("popover outside posts should collapse to text, got %q", got)
	}
	if !strings.Contains(got, "Tag go") {
		t.Errorf("popover label missing, got %q", got)
	}
}

func TestParseDocument_Charset(t *testing.T) {
	page := "<html><head><meta charset=\"iso-8859-1\"></head><body><article><p>K\xe4ytt\xe4j\xe4</p></article></body></html>"

	doc, err := ParseDocument(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	if got := doc.Find("p").Text(); got != "Käyttäjä" {
		t.Errorf("decoded text = %q, want %q", got, "Käyttäjä")
	}
}

func TestRewriteSrcset(t *testing.T) {
	c := newTestCleaner(t, nil)
	page, _ := c.pageBase("https://example.com/posts/a/")

	tests := []struct {
		name   string
		srcset string
		want   string
	}{
		{"relative", "a.jpg 1x, b.jpg 2x", "https://example.com/posts/a/a.jpg 1x, https://example.com/posts/a/b.jpg 2x"},
		{"root relative", "/img/a.jpg 480w", "https://example.com/img/a.jpg 480w"},
		{"absolute kept", "https://cdn.example.net/a.jpg 1x", "https://cdn.example.net/a.jpg 1x"},
		{"extra whitespace", "  a.jpg   1x ,, ", "https://example.com/posts/a/a.jpg 1x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.rewriteSrcset(page, tt.srcset); got != tt.want {
				t.Errorf("rewriteSrcset(%q) = %q, want %q", tt.srcset, got, tt.want)
			}
		})
	}
}

func TestDropEmptyContainers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty div", "<p>keep</p><div></div>", "<p>keep</p>"},
		{"nested empty", "<div><p> </p><span></span></div><p>x</p>", "<p>x</p>"},
		{"image kept", `<figure><img src="a.jpg"/></figure>`, `<figure><img src="a.jpg"/></figure>`},
		{"hr kept", "<hr/>", "<hr/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dropEmptyContainers(tt.in)
			if err != nil {
				t.Fatalf("dropEmptyContainers() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("dropEmptyContainers(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{"inline collapsed", "<p>Hello\n  <b>world</b></p><p>again</p>", "Hello world again"},
		{"paragraphs and lists", "<p>First paragraph ends here.</p><p>Second starts</p><ul><li>one</li><li>two</li></ul>", "First paragraph ends here. Second starts one two"},
		{"headings and breaks", "<h2>Title</h2>line<br>next", "Title line next"},
		{"table cells", "<table><tr><td>a</td><td>b</td></tr></table>", "a b"},
		{"inline stays joined", "<p>in<em>line</em>d</p>", "inlined"},
		{"script ignored", "<p>text</p><script>var x;</script>", "text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.fragment); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
