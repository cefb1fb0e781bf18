package enhancer

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DefaultMarkerPattern matches the last-modified marker the site generator appends to titles
const DefaultMarkerPattern = `\s*\[\[lastmod:\s*([^\]]+)\]\]\s*`

// MarkerParser strips last-modified markers from item titles
type MarkerParser struct {
	re *regexp.Regexp
}

// NewMarkerParser compiles pattern, which must have at least one capture group holding the timestamp
func NewMarkerParser(pattern string) (*MarkerParser, error) {
	if pattern == "" {
		pattern = DefaultMarkerPattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile marker pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("marker pattern %q has no capture group", pattern)
	}

	return &MarkerParser{re: re}, nil
}

// Extract removes every marker from title and returns the cleaned title and the
// first marker's timestamp. The time is zero when there is no marker or it does not parse.
func (m *MarkerParser) Extract(title string) (string, time.Time) {
	match := m.re.FindStringSubmatch(title)
	if match == nil {
		return title, time.Time{}
	}

	cleaned := strings.TrimSpace(m.re.ReplaceAllString(title, " "))

	raw := strings.TrimSpace(match[1])
	modified, err := dateparse.ParseAny(raw)
	if err != nil {
		slog.Warn("Ignoring unparseable last-modified marker", "title", cleaned, "marker", raw, "error", err)
		return cleaned, time.Time{}
	}

	return cleaned, modified
}
