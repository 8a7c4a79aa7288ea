package parser

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/texprefilter/internal/pandoc"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// MarkdownParser reads Markdown with embedded LaTeX using goldmark, without
// a pandoc executable. LaTeX environments become raw latex blocks, inline
// LaTeX commands raw latex inlines, and $...$ / $$...$$ math nodes, which is
// how pandoc's own markdown reader presents them to a filter.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(_ context.Context, r io.Reader, _ string) (*pandoc.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithParserOptions(
		gparser.WithBlockParsers(
			util.Prioritized(&texBlockParser{}, 850),
			util.Prioritized(&mathBlockParser{}, 860),
		),
		gparser.WithInlineParsers(
			util.Prioritized(&texInlineParser{}, 150),
			util.Prioritized(&mathInlineParser{}, 160),
		),
	))
	root := md.Parser().Parse(text.NewReader(src))

	c := &converter{src: src}
	return pandoc.NewDocument(c.blocks(root)...), nil
}

var (
	KindTeXBlock   = ast.NewNodeKind("TeXBlock")
	KindMathBlock  = ast.NewNodeKind("MathBlock")
	KindTeXInline  = ast.NewNodeKind("TeXInline")
	KindMathInline = ast.NewNodeKind("MathInline")
)

// TeXBlock is a \begin{NAME} ... \end{NAME} block kept verbatim.
type TeXBlock struct {
	ast.BaseBlock
	name   string
	depth  int
	closed bool
}

func (n *TeXBlock) Kind() ast.NodeKind { return KindTeXBlock }
func (n *TeXBlock) IsRaw() bool        { return true }
func (n *TeXBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": n.name}, nil)
}

// MathBlock is a $$ ... $$ display equation.
type MathBlock struct {
	ast.BaseBlock
	closed bool
}

func (n *MathBlock) Kind() ast.NodeKind { return KindMathBlock }
func (n *MathBlock) IsRaw() bool        { return true }
func (n *MathBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// TeXInline is an inline LaTeX command such as \eqref{eq1}.
type TeXInline struct {
	ast.BaseInline
	Value string
}

func (n *TeXInline) Kind() ast.NodeKind { return KindTeXInline }
func (n *TeXInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Value": n.Value}, nil)
}

// MathInline is $...$ (or $$...$$ within a paragraph).
type MathInline struct {
	ast.BaseInline
	Display bool
	Value   string
}

func (n *MathInline) Kind() ast.NodeKind { return KindMathInline }
func (n *MathInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Value": n.Value}, nil)
}

var envOpenRe = regexp.MustCompile(`^\\begin\{(\w+\*?)\}`)

type texBlockParser struct{}

func (b *texBlockParser) Trigger() []byte { return []byte{'\\'} }

func (b *texBlockParser) Open(parent ast.Node, reader text.Reader, pc gparser.Context) (ast.Node, gparser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 {
		return nil, gparser.NoChildren
	}
	m := envOpenRe.FindSubmatch(line[pos:])
	if m == nil {
		return nil, gparser.NoChildren
	}
	// An unclosed \begin stays paragraph text so the rest of the document
	// is not swallowed into a block that is later dropped.
	if !closes(reader.Source()[segment.Start+pos:], string(m[1])) {
		return nil, gparser.NoChildren
	}
	node := &TeXBlock{name: string(m[1])}
	node.track(line)
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return node, gparser.NoChildren
}

func (b *texBlockParser) Continue(node ast.Node, reader text.Reader, pc gparser.Context) gparser.State {
	n := node.(*TeXBlock)
	if n.closed {
		return gparser.Close
	}
	line, segment := reader.PeekLine()
	n.track(line)
	n.Lines().Append(segment)
	reader.AdvanceToEOL()
	if n.closed {
		return gparser.Close
	}
	return gparser.Continue | gparser.NoChildren
}

func (b *texBlockParser) Close(node ast.Node, reader text.Reader, pc gparser.Context) {}
func (b *texBlockParser) CanInterruptParagraph() bool                                  { return true }
func (b *texBlockParser) CanAcceptIndentedLine() bool                                  { return false }

// track counts same-name begins and ends so nested environments of the same
// name stay inside the block.
func (n *TeXBlock) track(line []byte) {
	n.depth += bytes.Count(line, []byte(`\begin{`+n.name+`}`))
	n.depth -= bytes.Count(line, []byte(`\end{`+n.name+`}`))
	if n.depth <= 0 {
		n.closed = true
	}
}

// closes reports whether the environment opened at the start of src is
// closed by a matching \end{name}, counting same-name nesting.
func closes(src []byte, name string) bool {
	begin, end := []byte(`\begin{`+name+`}`), []byte(`\end{`+name+`}`)
	depth := 0
	for {
		b, e := bytes.Index(src, begin), bytes.Index(src, end)
		switch {
		case e < 0:
			return false
		case b >= 0 && b < e:
			depth++
			src = src[b+len(begin):]
		default:
			depth--
			if depth <= 0 {
				return true
			}
			src = src[e+len(end):]
		}
	}
}

type mathBlockParser struct{}

func (b *mathBlockParser) Trigger() []byte { return []byte{'$'} }

func (b *mathBlockParser) Open(parent ast.Node, reader text.Reader, pc gparser.Context) (ast.Node, gparser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || !bytes.HasPrefix(line[pos:], []byte("$$")) {
		return nil, gparser.NoChildren
	}
	rest := line[pos+2:]
	closed := false
	if i := bytes.Index(rest, []byte("$$")); i >= 0 {
		// $$x$$ followed by more text is a paragraph with display math.
		if len(bytes.TrimSpace(rest[i+2:])) > 0 {
			return nil, gparser.NoChildren
		}
		closed = true
	}
	node := &MathBlock{closed: closed}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return node, gparser.NoChildren
}

func (b *mathBlockParser) Continue(node ast.Node, reader text.Reader, pc gparser.Context) gparser.State {
	n := node.(*MathBlock)
	if n.closed {
		return gparser.Close
	}
	line, segment := reader.PeekLine()
	n.Lines().Append(segment)
	reader.AdvanceToEOL()
	if bytes.Contains(line, []byte("$$")) {
		n.closed = true
		return gparser.Close
	}
	return gparser.Continue | gparser.NoChildren
}

func (b *mathBlockParser) Close(node ast.Node, reader text.Reader, pc gparser.Context) {}
func (b *mathBlockParser) CanInterruptParagraph() bool                                  { return true }
func (b *mathBlockParser) CanAcceptIndentedLine() bool                                  { return false }

// A command name, an optional [..] argument and brace groups nested at most
// one level deep.
var texCommandRe = regexp.MustCompile(`^\\[A-Za-z]+\*?(?:\[[^\]\n]*\])?(?:\{[^{}\n]*(?:\{[^{}\n]*\}[^{}\n]*)*\})*`)

type texInlineParser struct{}

func (p *texInlineParser) Trigger() []byte { return []byte{'\\'} }

func (p *texInlineParser) Parse(parent ast.Node, block text.Reader, pc gparser.Context) ast.Node {
	line, _ := block.PeekLine()
	m := texCommandRe.Find(line)
	if m == nil {
		return nil
	}
	block.Advance(len(m))
	return &TeXInline{Value: string(m)}
}

type mathInlineParser struct{}

func (p *mathInlineParser) Trigger() []byte { return []byte{'$'} }

// Parse follows pandoc's tex_math_dollars rules: no space just inside the
// delimiters and no digit right after the closing one.
func (p *mathInlineParser) Parse(parent ast.Node, block text.Reader, pc gparser.Context) ast.Node {
	line, _ := block.PeekLine()
	delim := 1
	if len(line) > 1 && line[1] == '$' {
		delim = 2
	}
	rest := line[delim:]
	end := bytes.Index(rest, line[:delim])
	if end <= 0 {
		return nil
	}
	content := rest[:end]
	if delim == 1 {
		if isSpaceByte(content[0]) || isSpaceByte(content[len(content)-1]) {
			return nil
		}
		if after := delim + end + delim; after < len(line) && line[after] >= '0' && line[after] <= '9' {
			return nil
		}
	}
	block.Advance(delim + end + delim)
	return &MathInline{Display: delim == 2, Value: strings.TrimSpace(string(content))}
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// converter turns a goldmark tree into pandoc nodes.
type converter struct {
	src []byte
}

func (c *converter) blocks(parent ast.Node) []pandoc.Node {
	var out []pandoc.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n)...)
	}
	return out
}

func (c *converter) block(n ast.Node) []pandoc.Node {
	switch n := n.(type) {
	case *ast.Heading:
		return []pandoc.Node{&pandoc.Header{Level: n.Level, Inlines: c.inlines(n)}}
	case *ast.Paragraph:
		return []pandoc.Node{&pandoc.Para{Inlines: c.inlines(n)}}
	case *ast.TextBlock:
		return []pandoc.Node{&pandoc.Plain{Inlines: c.inlines(n)}}
	case *ast.ThematicBreak:
		return []pandoc.Node{&pandoc.HorizontalRule{}}
	case *ast.FencedCodeBlock:
		var attr pandoc.Attr
		if lang := n.Language(c.src); len(lang) > 0 {
			attr.Classes = []string{string(lang)}
		}
		return []pandoc.Node{&pandoc.CodeBlock{Attr: attr, Text: c.lines(n.Lines())}}
	case *ast.CodeBlock:
		return []pandoc.Node{&pandoc.CodeBlock{Text: c.lines(n.Lines())}}
	case *ast.Blockquote:
		return []pandoc.Node{&pandoc.BlockQuote{Blocks: c.blocks(n)}}
	case *ast.List:
		var items [][]pandoc.Node
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			items = append(items, c.blocks(item))
		}
		if n.IsOrdered() {
			delim := "Period"
			if n.Marker == ')' {
				delim = "OneParen"
			}
			return []pandoc.Node{&pandoc.OrderedList{Start: n.Start, Style: "Decimal", Delim: delim, Items: items}}
		}
		return []pandoc.Node{&pandoc.BulletList{Items: items}}
	case *ast.HTMLBlock:
		raw := c.lines(n.Lines())
		if n.HasClosure() {
			raw += "\n" + strings.TrimRight(string(n.ClosureLine.Value(c.src)), "\n")
		}
		return []pandoc.Node{&pandoc.RawBlock{Format: "html", Text: raw}}
	case *TeXBlock:
		return []pandoc.Node{&pandoc.RawBlock{Format: "latex", Text: c.lines(n.Lines())}}
	case *MathBlock:
		body := strings.TrimPrefix(strings.TrimSpace(c.lines(n.Lines())), "$$")
		body, tail, _ := strings.Cut(body, "$$")
		out := []pandoc.Node{&pandoc.Para{Inlines: []pandoc.Node{
			&pandoc.Math{Type: pandoc.DisplayMath, Text: strings.TrimSpace(body)},
		}}}
		if tail = strings.TrimSpace(tail); tail != "" {
			b := &inlineBuilder{}
			b.text(tail)
			out = append(out, &pandoc.Para{Inlines: b.finish()})
		}
		return out
	}
	return c.blocks(n)
}

func (c *converter) lines(segs *text.Segments) string {
	var sb strings.Builder
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		sb.Write(seg.Value(c.src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *converter) inlines(parent ast.Node) []pandoc.Node {
	b := &inlineBuilder{}
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		c.inline(b, n)
	}
	return b.finish()
}

func (c *converter) inline(b *inlineBuilder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.text(string(util.UnescapePunctuations(n.Segment.Value(c.src))))
		if n.HardLineBreak() {
			b.add(&pandoc.LineBreak{})
		} else if n.SoftLineBreak() {
			b.add(&pandoc.SoftBreak{})
		}
	case *ast.String:
		b.text(string(n.Value))
	case *ast.Emphasis:
		if n.Level >= 2 {
			b.add(&pandoc.Strong{Inlines: c.inlines(n)})
		} else {
			b.add(&pandoc.Emph{Inlines: c.inlines(n)})
		}
	case *ast.CodeSpan:
		var sb strings.Builder
		for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
			if t, ok := ch.(*ast.Text); ok {
				sb.Write(t.Segment.Value(c.src))
			}
		}
		b.add(&pandoc.Code{Text: sb.String()})
	case *ast.Link:
		b.add(&pandoc.Link{
			Inlines: c.inlines(n),
			Target:  pandoc.Target{URL: string(n.Destination), Title: string(n.Title)},
		})
	case *ast.Image:
		b.add(&pandoc.Image{
			Inlines: c.inlines(n),
			Target:  pandoc.Target{URL: string(n.Destination), Title: string(n.Title)},
		})
	case *ast.AutoLink:
		b.add(&pandoc.Link{
			Inlines: []pandoc.Node{&pandoc.Str{Text: string(n.Label(c.src))}},
			Target:  pandoc.Target{URL: string(n.URL(c.src))},
		})
	case *ast.RawHTML:
		b.add(&pandoc.RawInline{Format: "html", Text: c.lines(n.Segments)})
	case *TeXInline:
		b.add(&pandoc.RawInline{Format: "latex", Text: n.Value})
	case *MathInline:
		typ := pandoc.InlineMath
		if n.Display {
			typ = pandoc.DisplayMath
		}
		b.add(&pandoc.Math{Type: typ, Text: n.Value})
	default:
		for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
			c.inline(b, ch)
		}
	}
}

// inlineBuilder splits text into Str and Space nodes the way pandoc does,
// merging words that goldmark delivered in pieces.
type inlineBuilder struct {
	nodes []pandoc.Node
}

func (b *inlineBuilder) add(n pandoc.Node) {
	b.nodes = append(b.nodes, n)
}

func (b *inlineBuilder) text(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			if len(b.nodes) > 0 && !b.lastIsBreak() {
				b.add(&pandoc.Space{})
			}
			continue
		}
		if str, ok := b.last().(*pandoc.Str); ok {
			str.Text += string(r)
			continue
		}
		b.add(&pandoc.Str{Text: string(r)})
	}
}

func (b *inlineBuilder) last() pandoc.Node {
	if len(b.nodes) == 0 {
		return nil
	}
	return b.nodes[len(b.nodes)-1]
}

func (b *inlineBuilder) lastIsBreak() bool {
	switch b.last().(type) {
	case *pandoc.Space, *pandoc.SoftBreak, *pandoc.LineBreak:
		return true
	}
	return false
}

func (b *inlineBuilder) finish() []pandoc.Node {
	for len(b.nodes) > 0 && b.lastIsBreak() {
		b.nodes = b.nodes[:len(b.nodes)-1]
	}
	return b.nodes
}
