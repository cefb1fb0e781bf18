package rss

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/feeds"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"

	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
)

// CustomRssCategory represents a category with an optional domain attribute
type CustomRssCategory struct {
	XMLName xml.Name `xml:"category"`
	Domain  string   `xml:"domain,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// CustomRssGuid represents a guid element with its permalink flag
type CustomRssGuid struct {
	XMLName     xml.Name `xml:"guid"`
	IsPermaLink string   `xml:"isPermaLink,attr,omitempty"`
	Value       string   `xml:",chardata"`
}

// CustomRssSource represents the source element of an item
type CustomRssSource struct {
	XMLName xml.Name `xml:"source"`
	URL     string   `xml:"url,attr"`
	Title   string   `xml:",chardata"`
}

// ExtensionElement is a namespaced element carried over from the source document
type ExtensionElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr         `xml:",any,attr"`
	Value    string             `xml:",chardata"`
	Children []ExtensionElement `xml:",any"`
}

// CustomRssItem represents an item with multi-category and extension support
type CustomRssItem struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	Description string   `xml:"description,omitempty"`
	Content     *feeds.RssContent
	Author      string              `xml:"author,omitempty"`
	Categories  []CustomRssCategory `xml:"category"`
	Comments    string              `xml:"comments,omitempty"`
	Enclosure   *feeds.RssEnclosure
	Guid        *CustomRssGuid
	PubDate     string `xml:"pubDate,omitempty"`
	Source      *CustomRssSource
	Extensions  []ExtensionElement `xml:",any"`
}

// CustomRssChannel represents the channel element
type CustomRssChannel struct {
	XMLName        xml.Name            `xml:"channel"`
	Title          string              `xml:"title"`
	Link           string              `xml:"link"`
	Description    string              `xml:"description"`
	Language       string              `xml:"language,omitempty"`
	Copyright      string              `xml:"copyright,omitempty"`
	ManagingEditor string              `xml:"managingEditor,omitempty"`
	WebMaster      string              `xml:"webMaster,omitempty"`
	PubDate        string              `xml:"pubDate,omitempty"`
	LastBuildDate  string              `xml:"lastBuildDate,omitempty"`
	Categories     []CustomRssCategory `xml:"category"`
	Generator      string              `xml:"generator,omitempty"`
	Docs           string              `xml:"docs,omitempty"`
	TTL            string              `xml:"ttl,omitempty"`
	Image          *feeds.RssImage
	Extensions     []ExtensionElement `xml:",any"`
	Items          []*CustomRssItem
}

// WriteFile serializes the document and atomically replaces path with it
func (d *Document) WriteFile(path string) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write feed %s: %w", path, err)
	}
	return nil
}

// WriteTo implements io.WriterTo
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	data, err := Marshal(d)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Marshal renders the document: XML header, the original processing instructions,
// the root element with its original attributes, then the channel.
func Marshal(d *Document) ([]byte, error) {
	if d == nil || d.Feed == nil {
		return nil, fmt.Errorf("document is empty")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	for _, pi := range d.Instructions {
		buf.WriteString(pi.String())
		buf.WriteByte('\n')
	}

	buf.WriteString("<rss")
	for _, attr := range rootAttrs(d) {
		buf.WriteByte(' ')
		buf.WriteString(attrName(attr.Name))
		buf.WriteString(`="`)
		if err := xml.EscapeText(&buf, []byte(attr.Value)); err != nil {
			return nil, fmt.Errorf("failed to escape attribute %s: %w", attr.Name.Local, err)
		}
		buf.WriteByte('"')
	}
	buf.WriteString(">\n")

	channel, err := xml.MarshalIndent(convertChannel(d.Feed), "  ", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channel: %w", err)
	}
	buf.WriteString("  ")
	buf.Write(channel)
	buf.WriteString("\n</rss>\n")

	return buf.Bytes(), nil
}

// ItemXML renders a single item, used by previews
func ItemXML(item *Item) (string, error) {
	data, err := xml.MarshalIndent(convertItem(item), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal item: %w", err)
	}
	return string(data), nil
}

// rootAttrs returns the original root attributes, adding version and the content namespace when absent
func rootAttrs(d *Document) []xml.Attr {
	attrs := make([]xml.Attr, 0, len(d.RootAttrs)+2)
	hasVersion, hasContent := false, false

	for _, attr := range d.RootAttrs {
		switch {
		case attr.Name.Space == "" && attr.Name.Local == "version":
			hasVersion = true
		case attr.Name.Space == "xmlns" && attr.Name.Local == "content":
			hasContent = true
		}
		attrs = append(attrs, attr)
	}

	if !hasVersion {
		attrs = append([]xml.Attr{{Name: xml.Name{Local: "version"}, Value: "2.0"}}, attrs...)
	}
	if !hasContent {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Space: "xmlns", Local: "content"}, Value: ContentNamespace})
	}
	return attrs
}

func attrName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func convertChannel(feed *rss.Feed) *CustomRssChannel {
	channel := &CustomRssChannel{
		Title:          feed.Title,
		Link:           feed.Link,
		Description:    feed.Description,
		Language:       feed.Language,
		Copyright:      feed.Copyright,
		ManagingEditor: feed.ManagingEditor,
		WebMaster:      feed.WebMaster,
		PubDate:        feed.PubDate,
		LastBuildDate:  feed.LastBuildDate,
		Categories:     convertCategories(feed.Categories),
		Generator:      feed.Generator,
		Docs:           feed.Docs,
		TTL:            feed.TTL,
		Extensions:     convertExtensions(feed.Extensions),
	}

	if feed.Image != nil && feed.Image.URL != "" {
		width, _ := strconv.Atoi(strings.TrimSpace(feed.Image.Width))
		height, _ := strconv.Atoi(strings.TrimSpace(feed.Image.Height))
		channel.Image = &feeds.RssImage{
			Url:    feed.Image.URL,
			Title:  feed.Image.Title,
			Link:   feed.Image.Link,
			Width:  width,
			Height: height,
		}
	}

	for _, item := range feed.Items {
		channel.Items = append(channel.Items, convertItem(item))
	}

	return channel
}

func convertItem(item *Item) *CustomRssItem {
	out := &CustomRssItem{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Author:      item.Author,
		Categories:  convertCategories(item.Categories),
		Comments:    item.Comments,
		PubDate:     item.PubDate,
		Extensions:  convertExtensions(item.Extensions),
	}

	if item.Content != "" {
		out.Content = &feeds.RssContent{Content: item.Content}
	}
	if item.Enclosure != nil && item.Enclosure.URL != "" {
		out.Enclosure = &feeds.RssEnclosure{
			Url:    item.Enclosure.URL,
			Length: item.Enclosure.Length,
			Type:   item.Enclosure.Type,
		}
	}
	if item.GUID != nil && item.GUID.Value != "" {
		out.Guid = &CustomRssGuid{
			IsPermaLink: item.GUID.IsPermalink,
			Value:       item.GUID.Value,
		}
	}
	if item.Source != nil && item.Source.URL != "" {
		out.Source = &CustomRssSource{
			URL:   item.Source.URL,
			Title: item.Source.Title,
		}
	}

	return out
}

func convertCategories(categories []*rss.Category) []CustomRssCategory {
	var out []CustomRssCategory
	for _, c := range categories {
		if c == nil || c.Value == "" {
			continue
		}
		out = append(out, CustomRssCategory{Domain: c.Domain, Value: c.Value})
	}
	return out
}

// convertExtensions flattens gofeed extensions into prefixed elements in a stable order.
// content:encoded is written from Item.Content and is skipped here.
func convertExtensions(extensions ext.Extensions) []ExtensionElement {
	if len(extensions) == 0 {
		return nil
	}

	prefixes := make([]string, 0, len(extensions))
	for prefix := range extensions {
		if prefix == "content" {
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	var out []ExtensionElement
	for _, prefix := range prefixes {
		out = append(out, convertExtensionMap(prefix, extensions[prefix])...)
	}
	return out
}

func convertExtensionMap(prefix string, elements map[string][]ext.Extension) []ExtensionElement {
	names := make([]string, 0, len(elements))
	for name := range elements {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []ExtensionElement
	for _, name := range names {
		for _, e := range elements[name] {
			out = append(out, convertExtension(prefix, e))
		}
	}
	return out
}

func convertExtension(prefix string, e ext.Extension) ExtensionElement {
	local := e.Name
	if prefix != "" {
		local = prefix + ":" + e.Name
	}

	el := ExtensionElement{
		XMLName: xml.Name{Local: local},
		Value:   e.Value,
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.Attrs = append(el.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: e.Attrs[k]})
	}

	if len(e.Children) > 0 {
		el.Children = convertExtensionMap(prefix, e.Children)
	}

	return el
}
