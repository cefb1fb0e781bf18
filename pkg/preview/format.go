// Package preview provides an interactive view of enhancer results using Bubble Tea TUI.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/enhancer"
	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
	"github.com/lepinkainen/rss-enhancer/pkg/rss"
)

const separator = "═══════════════════════════════════════════════════════════════════════\n"

// statusIcons marks each outcome in the list view
var statusIcons = map[enhancer.Status]string{
	enhancer.StatusEnhanced: "✚",
	enhancer.StatusCached:   "↺",
	enhancer.StatusSkipped:  "∅",
	enhancer.StatusFailed:   "✖",
}

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}

// truncateRunes shortens s to max runes, marking the cut with "..."
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// FormatCompactListItem formats a single result in compact list format
// Example: " 1. ✚ enhanced    4.2 KB  Hello World"
func FormatCompactListItem(index int, res enhancer.ItemResult) string {
	icon, ok := statusIcons[res.Status]
	if !ok {
		icon = "?"
	}

	const maxTitleLength = 70
	title := truncateRunes(res.Title, maxTitleLength)

	return fmt.Sprintf("%2d. %s %-8s %8s  %s", index+1, icon, res.Status, formatSize(res.ContentLength), title)
}

// FormatDetailedItem formats a single result with all metadata
func FormatDetailedItem(res enhancer.ItemResult) string {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "Title: %s\n", res.Title)
	fmt.Fprintf(&b, "Link: %s\n", res.Link)

	if res.Slug != "" {
		fmt.Fprintf(&b, "Slug: %s\n", res.Slug)
	}
	fmt.Fprintf(&b, "Status: %s\n", res.Status)

	if res.Page != "" {
		fmt.Fprintf(&b, "Page: %s\n", res.Page)
	}
	if !res.Modified.IsZero() {
		fmt.Fprintf(&b, "Modified: %s (%s)\n", res.Modified.Format(time.RFC3339), formatTimeAgo(res.Modified))
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", res.Error)
	}

	if res.Item != nil {
		if desc := strings.TrimSpace(res.Item.Description); desc != "" {
			fmt.Fprintf(&b, "\nDescription:\n%s\n", wrapText(desc, 70))
		}

		if content := htmlclean.PlainText(res.Item.Content); content != "" {
			const maxContentLength = 1000
			content = truncateRunes(content, maxContentLength)
			fmt.Fprintf(&b, "\nContent (%s):\n%s\n", formatSize(res.ContentLength), wrapText(content, 70))
		}
	}

	b.WriteString(separator)

	return b.String()
}

// FormatXMLItem renders the processed item as it will appear in the feed
func FormatXMLItem(res enhancer.ItemResult) string {
	if res.Item == nil {
		return "No item available"
	}

	itemXML, err := rss.ItemXML(res.Item)
	if err != nil {
		return fmt.Sprintf("Error rendering item: %s", err)
	}

	return wrapXMLContent(itemXML, 80)
}

// FormatSummary renders the one-line run summary shown in the list header
func FormatSummary(s *enhancer.Summary) string {
	return fmt.Sprintf("%d items: %d enhanced, %d cached, %d skipped, %d failed",
		s.Total, s.Enhanced, s.Cached, s.Skipped, s.Failed)
}

// wrapXMLContent wraps only long lines, keeping the XML structure intact
func wrapXMLContent(xml string, width int) string {
	var result strings.Builder

	for _, line := range strings.Split(xml, "\n") {
		remaining := []rune(line)
		for len(remaining) > width {
			breakPoint := width
			for i := width - 1; i > width-20 && i > 0; i-- {
				if remaining[i] == ' ' || remaining[i] == '>' {
					breakPoint = i + 1
					break
				}
			}
			result.WriteString(string(remaining[:breakPoint]))
			result.WriteString("\n")
			remaining = remaining[breakPoint:]
		}
		if len(remaining) > 0 {
			result.WriteString(string(remaining))
			result.WriteString("\n")
		}
	}

	return result.String()
}

// formatSize renders a byte count for humans
func formatSize(n int) string {
	switch {
	case n <= 0:
		return "-"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	default:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
}

// formatTimeAgo formats a time.Time as a human-readable "X ago" string
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < 0:
		return "in the future"
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	default:
		return t.Format("2006-01-02")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
