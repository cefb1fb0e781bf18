// Package htmlclean turns a rendered blog page into a sanitized HTML fragment
// suitable for an RSS reader: site chrome removed, links absolute, markup
// restricted to an allow-list.
package htmlclean

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"
)

// ErrNoContent is returned when no content region could be found in a page
var ErrNoContent = errors.New("no content region found")

// Options configures a Cleaner
type Options struct {
	// SiteURL is the absolute base URL of the site, e.g. https://example.com/
	SiteURL string

	ContentSelectors       []string
	RemoveSelectors        []string
	PopoverSelector        string
	PopoverContentSelector string
	PostsPathPrefix        string
	IconSelectors          []string
	ExtraAllowedElements   []string
	ReadabilityFallback    bool

	// MaxIconSize is the largest declared width/height treated as decoration
	MaxIconSize int
}

// DefaultOptions returns the selectors used by the site theme
func DefaultOptions() Options {
	return Options{
		ContentSelectors: []string{"article .post-content", "article", "main"},
		RemoveSelectors: []string{
			"script", "style", "noscript", "template", "nav", "button", "form",
			"#comments", ".comments", "[data-comments]",
			".media-links", "[data-media-links]",
			".external-links", "#external-links", "[data-external-links]",
			"[data-rss-exclude]",
		},
		PopoverSelector:        "[data-popover], .popover",
		PopoverContentSelector: ".popover-content, [data-popover-content]",
		PostsPathPrefix:        "/posts/",
		IconSelectors: []string{
			"img.emoji", "img.icon", "img[class*='icon']", "img[data-emoji]",
			"img[src*='/icons/']", "img[src*='emoji']", "img[src*='twemoji']",
		},
		ReadabilityFallback: true,
		MaxIconSize:         32,
	}
}

// Cleaner extracts and sanitizes post bodies
type Cleaner struct {
	opts   Options
	site   *url.URL
	policy *bluemonday.Policy
}

// New creates a Cleaner. SiteURL must be an absolute http(s) URL.
func New(opts Options) (*Cleaner, error) {
	site, err := url.Parse(strings.TrimSpace(opts.SiteURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse site URL: %w", err)
	}
	if site.Scheme != "http" && site.Scheme != "https" || site.Host == "" {
		return nil, fmt.Errorf("site URL must be an absolute http(s) URL: %q", opts.SiteURL)
	}
	if site.Path == "" {
		site.Path = "/"
	}

	if len(opts.ContentSelectors) == 0 {
		opts.ContentSelectors = DefaultOptions().ContentSelectors
	}
	if opts.PostsPathPrefix == "" {
		opts.PostsPathPrefix = "/"
	}

	return &Cleaner{
		opts:   opts,
		site:   site,
		policy: NewPolicy(opts.ExtraAllowedElements...),
	}, nil
}

// SiteURL returns the parsed site base URL
func (c *Cleaner) SiteURL() *url.URL {
	u := *c.site
	return &u
}

// ParseDocument decodes a rendered page, honouring its declared charset
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	utf8Reader, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("failed to detect page charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// Clean extracts the main content region of doc and returns it sanitized.
// doc is modified in place.
func (c *Cleaner) Clean(doc *goquery.Document, pageURL string) (string, error) {
	page, err := c.pageBase(pageURL)
	if err != nil {
		return "", err
	}

	region, err := c.selectContent(doc, page)
	if err != nil {
		return "", err
	}

	for _, sel := range c.opts.RemoveSelectors {
		region.Find(sel).Remove()
	}

	c.collapsePopovers(region, page)
	c.dropIcons(region)
	c.rewriteURLs(region, page)

	raw, err := region.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render content region: %w", err)
	}

	sanitized := c.policy.Sanitize(raw)

	pruned, err := dropEmptyContainers(sanitized)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(pruned), nil
}

// pageBase resolves the page URL against the site; an empty page URL means the site root
func (c *Cleaner) pageBase(pageURL string) (*url.URL, error) {
	if strings.TrimSpace(pageURL) == "" {
		return c.SiteURL(), nil
	}

	ref, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL %q: %w", pageURL, err)
	}
	page := c.site.ResolveReference(ref)
	page.RawQuery = ""
	page.Fragment = ""
	return page, nil
}

// selectContent returns the first matching content region, falling back to readability
func (c *Cleaner) selectContent(doc *goquery.Document, page *url.URL) (*goquery.Selection, error) {
	for _, sel := range c.opts.ContentSelectors {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			slog.Debug("Selected content region", "selector", sel, "page", page.String())
			return region, nil
		}
	}

	if !c.opts.ReadabilityFallback {
		return nil, ErrNoContent
	}

	return c.readabilityRegion(doc, page)
}

func (c *Cleaner) readabilityRegion(doc *goquery.Document, page *url.URL) (*goquery.Selection, error) {
	rendered, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return nil, fmt.Errorf("failed to render page for readability: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rendered), page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, ErrNoContent
	}

	slog.Debug("Using readability fallback", "page", page.String(), "title", article.Title)

	fragment, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse readability output: %w", err)
	}
	return fragment.Find("body").First(), nil
}
