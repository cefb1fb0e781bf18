// Package pagemeta extracts OpenGraph and fallback metadata from rendered pages.
package pagemeta

import (
	"strings"

	"golang.org/x/net/html"
)

// minParagraphLength is the shortest first paragraph accepted as a description
const minParagraphLength = 20

// Data holds the metadata of a rendered page
type Data struct {
	Title       string
	Description string
	Image       string
	SiteName    string
}

// Extract walks the page tree and collects OpenGraph tags with meta/twitter fallbacks.
// When no description is declared, the first substantial paragraph is used.
func Extract(root *html.Node) Data {
	var data Data
	if root == nil {
		return data
	}

	extractTags(root, &data)
	if data.Description == "" {
		data.Description = firstParagraph(root)
	}

	data.Title = cleanup(data.Title)
	data.Description = cleanup(data.Description)
	data.SiteName = cleanup(data.SiteName)
	data.Image = strings.TrimSpace(data.Image)

	return data
}

// extractTags recursively processes meta and title elements
func extractTags(n *html.Node, data *Data) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			processMetaTag(n, data)
		case "title":
			if data.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				data.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTags(c, data)
	}
}

// processMetaTag applies one meta tag. og:* wins over twitter:* and name=description.
func processMetaTag(n *html.Node, data *Data) {
	var property, content, name string

	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = attr.Val
		case "content":
			content = attr.Val
		case "name":
			name = attr.Val
		}
	}

	switch property {
	case "og:title":
		data.Title = content
	case "og:description":
		data.Description = content
	case "og:image":
		data.Image = content
	case "og:site_name":
		data.SiteName = content
	}

	switch name {
	case "description", "twitter:description":
		if data.Description == "" {
			data.Description = content
		}
	case "twitter:image":
		if data.Image == "" {
			data.Image = content
		}
	case "twitter:title":
		if data.Title == "" {
			data.Title = content
		}
	}
}

// firstParagraph returns the text of the first paragraph longer than minParagraphLength
func firstParagraph(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "p" {
		if text := strings.TrimSpace(TextContent(n)); len(text) > minParagraphLength {
			return text
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := firstParagraph(c); result != "" {
			return result
		}
	}
	return ""
}

// TextContent concatenates all text nodes below n
func TextContent(n *html.Node) string {
	var text strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			text.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return text.String()
}

func cleanup(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.Join(strings.Fields(s), " ")
}
