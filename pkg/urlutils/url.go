// Package urlutils provides URL and slug helper functions.
package urlutils

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrNoSlug is returned when a link has no path segment to derive a slug from
var ErrNoSlug = errors.New("no slug in link")

// IsValidURL checks if a URL is valid
func IsValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ResolveURL resolves a relative URL against a base URL
// If the URL is already absolute, it returns it unchanged
func ResolveURL(baseURL, relativeURL string) (string, error) {
	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", err
	}

	if rel.IsAbs() {
		return relativeURL, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(rel).String(), nil
}

// IsRewritable reports whether a reference points into the site and should be made absolute.
// Fragments, protocol-relative URLs and non-HTTP schemes are left alone.
func IsRewritable(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// LinkPath returns the cleaned path of a link without trailing index or .html suffixes.
// "https://example.com/posts/hello/index.html" -> "/posts/hello"
func LinkPath(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", link, err)
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	p = path.Clean("/" + p)
	p = strings.TrimSuffix(p, "/index.html")
	p = strings.TrimSuffix(p, ".html")
	if p == "" {
		p = "/"
	}
	return p, nil
}

// SlugFromLink derives a post slug from the last non-empty path segment of a link
func SlugFromLink(link string) (string, error) {
	p, err := LinkPath(link)
	if err != nil {
		return "", err
	}

	segment := path.Base(p)
	if segment == "/" || segment == "." || segment == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSlug, link)
	}

	slug, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("failed to decode slug %q: %w", segment, err)
	}
	return slug, nil
}

// SameHost reports whether two absolute URLs share scheme-insensitive host names
func SameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
