// Package media renders fixed-ratio containers for embedded images and video.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// TemplateName is the file rendered by Renderer
const TemplateName = "media-container.tmpl"

const (
	baseClass      = "media-container"
	clickableClass = "is-clickable"
)

// ErrInvalidSize is returned for negative or half-specified dimensions
var ErrInvalidSize = errors.New("invalid media size")

// Container describes one media box. Zero Width and Height mean natural sizing.
type Container struct {
	Width     int
	Height    int
	OnClick   template.JS
	ClassName string
}

// Validate checks the dimensions
func (c Container) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Width, c.Height)
	}
	if (c.Width == 0) != (c.Height == 0) {
		return fmt.Errorf("%w: width and height must be set together (%dx%d)", ErrInvalidSize, c.Width, c.Height)
	}
	return nil
}

// AspectRatio returns the CSS aspect-ratio value, or "" for natural sizing
func (c Container) AspectRatio() string {
	if c.Width <= 0 || c.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%d / %d", c.Width, c.Height)
}

// Clickable reports whether a click handler is wired
func (c Container) Clickable() bool {
	return strings.TrimSpace(string(c.OnClick)) != ""
}

// Class returns the full class attribute
func (c Container) Class() string {
	classes := []string{baseClass}
	if c.Clickable() {
		classes = append(classes, clickableClass)
	}
	classes = append(classes, strings.Fields(c.ClassName)...)
	return strings.Join(classes, " ")
}

// Style returns the inline style carrying the aspect ratio
func (c Container) Style() template.CSS {
	ratio := c.AspectRatio()
	if ratio == "" {
		return ""
	}
	return template.CSS("aspect-ratio: " + ratio)
}

// view is the template data
type view struct {
	Class   string
	Style   template.CSS
	OnClick template.JS
	Inner   template.HTML
}

// Renderer executes the media container template
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer loads the container template from the override or embedded filesystem
func NewRenderer() (*Renderer, error) {
	content, err := readTemplate(TemplateName)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(TemplateName).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", TemplateName, err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render wraps inner in a container
func (r *Renderer) Render(c Container, inner template.HTML) (template.HTML, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	data := view{
		Class: c.Class(),
		Style: c.Style(),
		Inner: inner,
	}
	if c.Clickable() {
		data.OnClick = template.JS(strings.TrimSpace(string(c.OnClick)))
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", TemplateName, err)
	}

	return template.HTML(strings.TrimSpace(buf.String())), nil
}

// Funcs exposes the renderer to other html/template templates:
//
//	{{mediaContainer 16 9 "hero" .Image}}
//	{{mediaBox .Box .Image}}
//	<style>{{mediaStyles}}</style>
//
// mediaBox takes a full Container, including its click handler.
func (r *Renderer) Funcs() template.FuncMap {
	return template.FuncMap{
		"mediaContainer": func(width, height int, className string, inner template.HTML) (template.HTML, error) {
			return r.Render(Container{Width: width, Height: height, ClassName: className}, inner)
		},
		"mediaBox":    r.Render,
		"mediaStyles": Stylesheet,
	}
}

// Stylesheet returns the rules that let nested content fill a container
func Stylesheet() template.CSS {
	return template.CSS(`.media-container{position:relative;display:block;width:100%;overflow:hidden}
.media-container[style]>*{position:absolute;inset:0;width:100%;height:100%;object-fit:cover}
.media-container:not([style])>*{display:block;width:100%;height:auto}
.media-container.is-clickable{cursor:pointer}
`)
}
