package htmlclean

import (
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/rss-enhancer/pkg/urlutils"
)

// popoverTargetAttrs are checked in order before falling back to the first link inside the popover
var popoverTargetAttrs = []string{"data-href", "data-popover-href"}

// collapsePopovers replaces hover previews with plain markup. A popover pointing
// at another post becomes an anchor with the absolute post URL; anything else
// collapses to its label text.
func (c *Cleaner) collapsePopovers(region *goquery.Selection, page *url.URL) {
	if c.opts.PopoverSelector == "" {
		return
	}

	region.Find(c.opts.PopoverSelector).Each(func(_ int, pop *goquery.Selection) {
		target := popoverTarget(pop)

		if c.opts.PopoverContentSelector != "" {
			pop.Find(c.opts.PopoverContentSelector).Remove()
		}
		label := strings.Join(strings.Fields(pop.Text()), " ")

		postURL, ok := c.postURL(target, page)
		if !ok {
			pop.ReplaceWithHtml(html.EscapeString(label))
			return
		}

		if label == "" {
			label, _ = urlutils.SlugFromLink(postURL)
		}
		pop.ReplaceWithHtml(`<a href="` + html.EscapeString(postURL) + `">` + html.EscapeString(label) + `</a>`)
	})
}

func popoverTarget(pop *goquery.Selection) string {
	for _, attr := range popoverTargetAttrs {
		if value, ok := pop.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	if href, ok := pop.Find("a[href]").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

// postURL resolves target and reports whether it is a post on this site
func (c *Cleaner) postURL(target string, page *url.URL) (string, bool) {
	if target == "" || strings.HasPrefix(target, "#") {
		return "", false
	}

	ref, err := url.Parse(target)
	if err != nil {
		return "", false
	}

	base := page
	if strings.HasPrefix(target, "/") {
		base = c.site
	}
	resolved := base.ResolveReference(ref)

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if !urlutils.SameHost(resolved, c.site) {
		return "", false
	}
	if !strings.HasPrefix(resolved.Path, c.postsPrefix()) {
		return "", false
	}
	if slug, err := urlutils.SlugFromLink(resolved.String()); err != nil || slug == "" {
		return "", false
	}

	return resolved.String(), true
}

// postsPrefix joins the site path with the configured posts prefix
func (c *Cleaner) postsPrefix() string {
	prefix := c.opts.PostsPathPrefix
	if strings.HasPrefix(prefix, c.site.Path) {
		return prefix
	}
	return strings.TrimSuffix(c.site.Path, "/") + "/" + strings.TrimPrefix(prefix, "/")
}
