package filter

import (
	"context"
	"strings"

	"github.com/dgallion1/texprefilter/internal/pandoc"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rewriteImage resolves the image target against the figure search path.
// The first reference to a labeled figure is numbered and wrapped together
// with its hidden anchor in a span carrying the label.
func (c *Context) rewriteImage(img *pandoc.Image) pandoc.Result {
	if c.figures.Seen(img.Target.URL) {
		return pandoc.Keep()
	}

	resolved := c.resolver.Resolve(img.Target.URL)
	if c.figures.Seen(resolved) {
		return pandoc.Keep()
	}
	img.Target.URL = resolved
	c.figures.Register(resolved)
	c.metrics.IncrementFigures()

	label, ok := imageLabel(img)
	if !ok && c.figureLabel != "" {
		label, ok = c.figureLabel, true
		c.figureLabel = ""
	}
	if !ok {
		return pandoc.Replace(img)
	}
	n := c.figures.Label(resolved, label)
	c.log.Debug("figure labeled", "path", resolved, "label", label, "number", n)

	return pandoc.Replace(&pandoc.Span{
		Attr:    pandoc.Attr{ID: label},
		Inlines: []pandoc.Node{img, c.anchorInline(label, n)},
	})
}

// rewriteFigure filters a Figure block. pandoc puts the \label of a LaTeX
// figure in the Figure identifier; it labels the first new image inside and
// moves to that image's span.
func (c *Context) rewriteFigure(ctx context.Context, fig *pandoc.Generic) (pandoc.Result, error) {
	attr, ok := fig.Attr()
	if !ok || attr.ID == "" {
		return pandoc.Keep(), nil
	}
	prev := c.figureLabel
	c.figureLabel = attr.ID
	defer func() { c.figureLabel = prev }()

	if err := pandoc.WalkChildren(fig, c.visitor(ctx)); err != nil {
		return pandoc.Keep(), err
	}
	if c.figureLabel == "" {
		attr.ID = ""
		fig.SetAttr(attr)
	}
	return pandoc.Replace(fig), nil
}

// imageLabel looks for a label on the image attributes, then on a span in
// the caption, then in a raw HTML fragment of the caption.
func imageLabel(img *pandoc.Image) (string, bool) {
	if l := attrLabel(img.Attr); l != "" {
		return l, true
	}
	return inlineLabel(img.Inlines)
}

func attrLabel(a pandoc.Attr) string {
	for _, key := range []string{"data-label", "label"} {
		if v, ok := a.Get(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func inlineLabel(nodes []pandoc.Node) (string, bool) {
	for _, n := range nodes {
		var inner []pandoc.Node
		switch n := n.(type) {
		case *pandoc.Span:
			if l := attrLabel(n.Attr); l != "" {
				return l, true
			}
			inner = n.Inlines
		case *pandoc.Emph:
			inner = n.Inlines
		case *pandoc.Strong:
			inner = n.Inlines
		case *pandoc.RawInline:
			if n.Format == "html" {
				if l, ok := htmlLabel(n.Text); ok {
					return l, true
				}
			}
		}
		if l, ok := inlineLabel(inner); ok {
			return l, true
		}
	}
	return "", false
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// htmlLabel finds a data-label attribute in an HTML fragment such as
// <span data-label="fig:x">.
func htmlLabel(fragment string) (string, bool) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext)
	if err != nil {
		return "", false
	}
	for _, n := range nodes {
		if l, ok := findDataLabel(n); ok {
			return l, true
		}
	}
	return "", false
}

func findDataLabel(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "data-label" && strings.TrimSpace(a.Val) != "" {
				return strings.TrimSpace(a.Val), true
			}
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if l, ok := findDataLabel(ch); ok {
			return l, true
		}
	}
	return "", false
}
