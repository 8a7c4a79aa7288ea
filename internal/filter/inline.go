package filter

import (
	"strings"

	"github.com/dgallion1/texprefilter/internal/latex"
	"github.com/dgallion1/texprefilter/internal/pandoc"
)

// Handler rewrites a preserved raw inline fragment. It is either a Literal or
// a Rewriter.
type Handler interface {
	handler()
}

// Literal replaces every occurrence of From with To. The fragment still ends
// up as one inline math node.
type Literal struct {
	From string
	To   string
}

// Rewriter turns a fragment containing Macro into arbitrary inline nodes.
// When several rewriters apply, the last one's output is used.
type Rewriter struct {
	Macro string
	Fn    func(text string) []pandoc.Node
}

func (Literal) handler()  {}
func (Rewriter) handler() {}

// rewriteInline keeps fragments that mention a preserved macro and drops the
// rest, absorbing any \graphicspath directive they carry.
func (c *Context) rewriteInline(raw *pandoc.RawInline) pandoc.Result {
	if !c.isPreserved(raw.Text) {
		c.absorbGraphicsPath(raw.Text)
		c.drop(raw, "raw latex without a preserved macro")
		return pandoc.Delete()
	}

	text := latex.ReplaceGraphics(raw.Text, c.resolver.Resolve)

	var (
		out       []pandoc.Node
		rewritten bool
	)
	for _, h := range c.handlers {
		switch h := h.(type) {
		case Literal:
			text = strings.ReplaceAll(text, h.From, h.To)
		case Rewriter:
			if h.Fn != nil && strings.Contains(text, h.Macro) {
				out, rewritten = h.Fn(text), true
			}
		}
	}
	if rewritten {
		return pandoc.Replace(out...)
	}
	return pandoc.Replace(&pandoc.Math{Type: pandoc.InlineMath, Text: text})
}

func (c *Context) isPreserved(text string) bool {
	for _, m := range c.preserved {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func (c *Context) absorbGraphicsPath(text string) {
	if !latex.HasGraphicsPath(text) {
		return
	}
	dirs, ok := latex.ParseGraphicsPath(text)
	if !ok {
		c.log.Warn("ignoring malformed graphicspath", "text", text)
		return
	}
	c.resolver.AddDirs(dirs...)
	c.log.Debug("figure search path extended", "dirs", dirs, "search_path", c.resolver.Dirs())
}

func rewriteDisplayMath(m *pandoc.Math) pandoc.Result {
	if latex.IsEquation(m.Text) {
		return pandoc.Keep()
	}
	return pandoc.Replace(&pandoc.Math{Type: pandoc.DisplayMath, Text: latex.WrapEquation(m.Text)})
}
