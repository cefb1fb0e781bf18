// Package rss reads and rewrites RSS 2.0 documents without losing the parts
// the feed parser ignores (stylesheet processing instructions and root
// namespace declarations).
package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mmcdole/gofeed/rss"
)

// StylesheetTarget is the processing instruction target browsers use to style feeds
const StylesheetTarget = "xml-stylesheet"

// ContentNamespace is the namespace of the content:encoded element
const ContentNamespace = "http://purl.org/rss/1.0/modules/content/"

// Item is a single feed entry as parsed by gofeed
type Item = rss.Item

// Instruction is a processing instruction found before the root element
type Instruction struct {
	Target string
	Inst   string
}

// String renders the instruction exactly as it appeared in the source document.
// Inst keeps the whitespace that separated it from the target.
func (i Instruction) String() string {
	return "<?" + i.Target + i.Inst + "?>"
}

// Document is a parsed feed together with the prolog details needed to write it back
type Document struct {
	Feed         *rss.Feed
	Instructions []Instruction
	RootAttrs    []xml.Attr
}

// Items returns the feed items in document order
func (d *Document) Items() []*Item {
	if d == nil || d.Feed == nil {
		return nil
	}
	return d.Feed.Items
}

// Stylesheets returns only the xml-stylesheet instructions
func (d *Document) Stylesheets() []Instruction {
	var out []Instruction
	for _, pi := range d.Instructions {
		if pi.Target == StylesheetTarget {
			out = append(out, pi)
		}
	}
	return out
}

// ParseFile reads and parses the feed at path
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
	}
	return doc, nil
}

// Parse parses an RSS document
func Parse(data []byte) (*Document, error) {
	parser := &rss.Parser{}
	feed, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rss: %w", err)
	}

	for _, item := range feed.Items {
		if item.Content == "" {
			item.Content = encodedContent(item)
		}
	}

	instructions, attrs, err := scanProlog(data)
	if err != nil {
		return nil, err
	}

	return &Document{
		Feed:         feed,
		Instructions: instructions,
		RootAttrs:    attrs,
	}, nil
}

// encodedContent reads content:encoded when the parser filed it under extensions
func encodedContent(item *Item) string {
	if item.Extensions == nil {
		return ""
	}
	values := item.Extensions["content"]["encoded"]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// scanProlog collects processing instructions that precede the root element and the root's attributes
func scanProlog(data []byte) ([]Instruction, []xml.Attr, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var instructions []Instruction
	for {
		start := decoder.InputOffset()
		tok, err := decoder.RawToken()
		if errors.Is(err, io.EOF) {
			return instructions, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan feed prolog: %w", err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
			instructions = append(instructions, Instruction{
				Target: t.Target,
				Inst:   rawInst(data[start:decoder.InputOffset()], t),
			})
		case xml.StartElement:
			attrs := make([]xml.Attr, len(t.Attr))
			copy(attrs, t.Attr)
			return instructions, attrs, nil
		}
	}
}

// rawInst returns the instruction body exactly as written, including the
// whitespace after the target that encoding/xml drops
func rawInst(raw []byte, pi xml.ProcInst) string {
	prefix := "<?" + pi.Target
	if bytes.HasPrefix(raw, []byte(prefix)) && bytes.HasSuffix(raw, []byte("?>")) && len(raw) >= len(prefix)+2 {
		return string(raw[len(prefix) : len(raw)-2])
	}
	if len(pi.Inst) == 0 {
		return ""
	}
	return " " + string(pi.Inst)
}
