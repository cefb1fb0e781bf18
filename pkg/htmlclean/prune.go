package htmlclean

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// containerElements may be dropped when they hold neither text nor media
const containerElements = "div, span, p, section, article, aside, header, footer, figure, blockquote, ul, ol, li, a, strong, em, b, i"

// mediaElements count as content even without text
const mediaElements = "img, video, audio, picture, source, iframe, hr"

// dropEmptyContainers removes container elements left empty by cleaning
func dropEmptyContainers(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse sanitized fragment: %w", err)
	}

	body := doc.Find("body")
	body.Find(containerElements).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isEmpty(s)
	}).Remove()

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render sanitized fragment: %w", err)
	}
	return out, nil
}

func isEmpty(s *goquery.Selection) bool {
	if strings.TrimSpace(s.Text()) != "" {
		return false
	}
	if s.Is(mediaElements) {
		return false
	}
	return s.Find(mediaElements).Length() == 0
}

// blockElements end a run of text when extracting plain text
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Br: true, atom.Hr: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Figure: true, atom.Figcaption: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Dt: true, atom.Dd: true, atom.Table: true,
}

// PlainText returns the whitespace-collapsed text of an HTML fragment.
// Block elements are separated by a space.
func PlainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}

	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
