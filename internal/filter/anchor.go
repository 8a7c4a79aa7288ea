package filter

import (
	"strings"

	"github.com/dgallion1/texprefilter/internal/latex"
	"github.com/dgallion1/texprefilter/internal/pandoc"
)

const hiddenStyle = "display:none;visibility:hidden"

// The hidden anchor is an invisible numbered equation whose \tag and \label
// let a math renderer resolve \ref{label} to a figure or environment.

func anchorAttr(label string) pandoc.Attr {
	return pandoc.Attr{
		ID:  label + "_math",
		KVs: []pandoc.KV{{Key: "style", Value: hiddenStyle}},
	}
}

// isAnchor reports whether a div or span is a hidden anchor from an earlier
// pass. Its content is final, including a raw anchor format.
func isAnchor(a pandoc.Attr) bool {
	style, _ := a.Get("style")
	return strings.HasSuffix(a.ID, "_math") && style == hiddenStyle
}

func (c *Context) anchorBlock(label string, n int) pandoc.Node {
	tex := latex.AnchorTeX(label, n)
	var content pandoc.Node = &pandoc.Plain{Inlines: []pandoc.Node{
		&pandoc.Math{Type: pandoc.DisplayMath, Text: tex},
	}}
	if c.anchorFormat != "" {
		content = &pandoc.RawBlock{Format: c.anchorFormat, Text: "$$" + tex + "$$"}
	}
	return &pandoc.Div{Attr: anchorAttr(label), Blocks: []pandoc.Node{content}}
}

func (c *Context) anchorInline(label string, n int) pandoc.Node {
	tex := latex.AnchorTeX(label, n)
	var content pandoc.Node = &pandoc.Math{Type: pandoc.DisplayMath, Text: tex}
	if c.anchorFormat != "" {
		content = &pandoc.RawInline{Format: c.anchorFormat, Text: "$$" + tex + "$$"}
	}
	return &pandoc.Span{Attr: anchorAttr(label), Inlines: []pandoc.Node{content}}
}
