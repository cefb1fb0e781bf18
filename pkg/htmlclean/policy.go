package htmlclean

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedElements lists the attribute-less elements permitted in feed content
var AllowedElements = []string{
	"p", "br", "hr", "div", "span",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"blockquote", "pre", "code", "kbd", "samp", "var",
	"em", "strong", "b", "i", "u", "s", "del", "ins", "mark", "small", "sub", "sup", "abbr", "cite", "q",
	"ul", "ol", "li", "dl", "dt", "dd",
	"figure", "figcaption", "picture",
	"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
	"details", "summary", "time",
}

var (
	codeLanguageClass = regexp.MustCompile(`^language-[\w+-]+$`)
	numeric           = regexp.MustCompile(`^[0-9]+$`)
)

// NewPolicy builds the allow-list sanitizer. extra adds attribute-less elements.
func NewPolicy(extra ...string) *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")

	p.AllowElements(AllowedElements...)
	if len(extra) > 0 {
		p.AllowElements(extra...)
	}

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "srcset", "sizes", "loading").OnElements("img")
	p.AllowAttrs("width", "height").Matching(numeric).OnElements("img", "video")
	p.AllowAttrs("src", "srcset", "type", "media", "sizes").OnElements("source")
	p.AllowAttrs("src", "poster", "controls", "loop", "muted", "playsinline", "preload").OnElements("video")
	p.AllowAttrs("src", "controls", "loop", "preload").OnElements("audio")
	p.AllowAttrs("cite").OnElements("blockquote", "q", "del", "ins")
	p.AllowAttrs("title").OnElements("abbr")
	p.AllowAttrs("datetime").OnElements("time", "del", "ins")
	p.AllowAttrs("colspan", "rowspan").Matching(numeric).OnElements("td", "th")
	p.AllowAttrs("start").Matching(numeric).OnElements("ol")
	p.AllowAttrs("open").OnElements("details")
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code", "pre")

	return p
}
