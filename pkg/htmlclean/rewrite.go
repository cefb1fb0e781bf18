package htmlclean

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/rss-enhancer/pkg/urlutils"
)

// urlAttributes lists the attributes that carry a single URL
var urlAttributes = map[string][]string{
	"a":      {"href"},
	"img":    {"src"},
	"source": {"src"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"track":  {"src"},
}

// rewriteURLs makes internal links and asset references absolute.
// Root-relative references resolve against the site, relative ones against the page.
func (c *Cleaner) rewriteURLs(region *goquery.Selection, page *url.URL) {
	for element, attrs := range urlAttributes {
		region.Find(element).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range attrs {
				value, ok := s.Attr(attr)
				if !ok || !urlutils.IsRewritable(value) {
					continue
				}
				s.SetAttr(attr, c.absolute(page, value))
			}
		})
	}

	region.Find("img[srcset], source[srcset]").Each(func(_ int, s *goquery.Selection) {
		srcset, _ := s.Attr("srcset")
		s.SetAttr("srcset", c.rewriteSrcset(page, srcset))
	})
}

func (c *Cleaner) absolute(page *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	base := page
	if strings.HasPrefix(ref, "/") {
		base = c.site
	}

	resolved, err := urlutils.ResolveURL(base.String(), ref)
	if err != nil {
		slog.Debug("Leaving unparseable URL as-is", "url", ref, "error", err)
		return ref
	}
	return resolved
}

// rewriteSrcset rewrites each candidate of a srcset list, keeping its descriptor
func (c *Cleaner) rewriteSrcset(page *url.URL, srcset string) string {
	candidates := strings.Split(srcset, ",")
	out := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		if urlutils.IsRewritable(fields[0]) {
			fields[0] = c.absolute(page, fields[0])
		}
		out = append(out, strings.Join(fields, " "))
	}

	return strings.Join(out, ", ")
}

// dropIcons removes decorative icon and emoji images
func (c *Cleaner) dropIcons(region *goquery.Selection) {
	for _, sel := range c.opts.IconSelectors {
		region.Find(sel).Remove()
	}

	if c.opts.MaxIconSize <= 0 {
		return
	}

	region.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isTinyImage(s, c.opts.MaxIconSize)
	}).Remove()
}

func isTinyImage(s *goquery.Selection, limit int) bool {
	width, okW := dimension(s, "width")
	height, okH := dimension(s, "height")
	return okW && okH && width <= limit && height <= limit
}

func dimension(s *goquery.Selection, attr string) (int, bool) {
	value, ok := s.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}
