// Package filter rewrites the LaTeX-specific parts of a pandoc document into
// renderer-neutral nodes: custom environments become numbered divs, preserved
// reference macros become inline math, images are resolved against the
// figure search path and labeled ones get a hidden numbered anchor, and
// display math is wrapped in equation environments. Raw markup it cannot
// translate is dropped.
//
// A Context holds the state of one filter run. Environment bodies are parsed
// again and filtered by nested runs that share the Context, so numbering,
// processed figures and configuration carry across the whole document.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/texprefilter/internal/figures"
	"github.com/dgallion1/texprefilter/internal/metrics"
	"github.com/dgallion1/texprefilter/internal/pandoc"
	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/spf13/afero"
)

var (
	ErrMaxDepth    = errors.New("maximum environment nesting depth exceeded")
	ErrNestedParse = errors.New("nested parse failed")
)

// DefaultMaxDepth bounds how many environments may nest inside each other.
const DefaultMaxDepth = 32

// DefaultPreservedTeX lists the inline macros kept (as math) by default.
var DefaultPreservedTeX = []string{`\eqref`, `\ref`, `\Cref`, `\cref`, `\includegraphics`}

// Config is the configuration a run starts from. Document metadata is merged
// on top of it.
type Config struct {
	SourceFormat    string
	MaxDepth        int
	PreservedTeX    []string
	InlineMath      map[string]string
	EnvConversions  map[string]string
	FigureDirs      []string
	FigureExt       string
	AnchorRawFormat string
}

// DefaultConfig returns the stock configuration for LaTeX sources.
func DefaultConfig() Config {
	return Config{
		SourceFormat:   "latex",
		MaxDepth:       DefaultMaxDepth,
		PreservedTeX:   append([]string(nil), DefaultPreservedTeX...),
		EnvConversions: map[string]string{"Exa": "example"},
	}
}

// Option customizes a Context.
type Option func(*Context)

// WithParser sets the parser used for environment bodies.
func WithParser(p parser.Parser) Option {
	return func(c *Context) { c.parser = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.log = l }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// WithFS sets the filesystem probed by the figure resolver.
func WithFS(fs afero.Fs) Option {
	return func(c *Context) { c.fs = fs }
}

// WithRewriter registers fn for raw inline fragments containing macro.
func WithRewriter(macro string, fn func(text string) []pandoc.Node) Option {
	return func(c *Context) { c.handlers = append(c.handlers, Rewriter{Macro: macro, Fn: fn}) }
}

// Context is the state of one filter run. It is shared by reference with
// the nested runs over environment bodies and must not be used for more than
// one document or from more than one goroutine.
type Context struct {
	sourceFormat string
	maxDepth     int
	anchorFormat string

	preserved   []string
	handlers    []Handler
	conversions map[string]string
	counters    map[string]int

	fs       afero.Fs
	resolver *figures.Resolver
	figures  *figures.Registry

	parser      parser.Parser
	depth       int
	figureLabel string
	log     *slog.Logger
	metrics metrics.Metrics
}

// New creates the context for one document.
func New(cfg Config, opts ...Option) *Context {
	c := &Context{
		sourceFormat: cfg.SourceFormat,
		maxDepth:     cfg.MaxDepth,
		anchorFormat: cfg.AnchorRawFormat,
		conversions:  map[string]string{},
		counters:     map[string]int{},
		figures:      figures.NewRegistry(),
		handlers: []Handler{
			Literal{From: `\cref`, To: `\ref`},
			Literal{From: `\Cref`, To: `\ref`},
		},
	}
	if c.sourceFormat == "" {
		c.sourceFormat = "latex"
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
	c.addPreserved(cfg.PreservedTeX...)
	for k, v := range cfg.EnvConversions {
		c.conversions[k] = v
	}
	c.addLiterals(cfg.InlineMath)

	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNoopMetrics()
	}
	c.resolver = figures.NewResolver(c.fs, cfg.FigureDirs, cfg.FigureExt)
	return c
}

// Apply filters doc in place: the document metadata is merged into the run
// configuration, then every block is walked, parents before children.
func (c *Context) Apply(ctx context.Context, doc *pandoc.Document) error {
	c.mergeMeta(doc.Meta)
	blocks, err := pandoc.Walk(doc.Blocks, c.visitor(ctx))
	if err != nil {
		c.metrics.IncrementFilterErrors()
		return err
	}
	doc.Blocks = blocks
	c.metrics.IncrementDocuments()
	return nil
}

func (c *Context) visitor(ctx context.Context) pandoc.WalkFunc {
	return func(n pandoc.Node) (pandoc.Result, error) {
		return c.Dispatch(ctx, n)
	}
}

// Dispatch decides the fate of one node. A replacement is final; Keep lets
// the walk descend into the node's children.
func (c *Context) Dispatch(ctx context.Context, n pandoc.Node) (pandoc.Result, error) {
	switch n := n.(type) {
	case *pandoc.RawInline:
		if isTeX(n.Format) {
			return c.rewriteInline(n), nil
		}
	case *pandoc.RawBlock:
		if isTeX(n.Format) {
			return c.rewriteEnvironment(ctx, n)
		}
	case *pandoc.Image:
		return c.rewriteImage(n), nil
	case *pandoc.Generic:
		if n.T == "Figure" {
			return c.rewriteFigure(ctx, n)
		}
	case *pandoc.Div:
		if isAnchor(n.Attr) {
			return pandoc.Replace(n), nil
		}
	case *pandoc.Span:
		if isAnchor(n.Attr) {
			return pandoc.Replace(n), nil
		}
	case *pandoc.Math:
		if n.Type == pandoc.DisplayMath {
			return rewriteDisplayMath(n), nil
		}
		return pandoc.Keep(), nil
	}
	if strings.Contains(n.Tag(), "Raw") {
		c.drop(n, "untranslatable raw markup")
		return pandoc.Delete(), nil
	}
	return pandoc.Keep(), nil
}

// nested parses body and filters it one level deeper with this context.
func (c *Context) nested(ctx context.Context, body string) ([]pandoc.Node, error) {
	if c.depth >= c.maxDepth {
		return nil, fmt.Errorf("%w: limit %d", ErrMaxDepth, c.maxDepth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.parser == nil {
		return nil, fmt.Errorf("%w: no parser configured", ErrNestedParse)
	}
	doc, err := c.parser.Parse(ctx, strings.NewReader(body), c.sourceFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNestedParse, err)
	}

	c.depth++
	defer func() { c.depth-- }()
	c.mergeMeta(doc.Meta)
	return pandoc.Walk(doc.Blocks, c.visitor(ctx))
}

func (c *Context) drop(n pandoc.Node, reason string) {
	c.metrics.IncrementDroppedRaw(n.Tag())
	c.log.Debug("dropping node", "tag", n.Tag(), "reason", reason, "text", snippet(n))
}

// Counter returns how many environments of class have been numbered.
func (c *Context) Counter(class string) int {
	return c.counters[class]
}

// Counters returns a copy of the per-class environment counters.
func (c *Context) Counters() map[string]int {
	out := make(map[string]int, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Figures returns the processed-figure registry of the run.
func (c *Context) Figures() *figures.Registry {
	return c.figures
}

// Resolver returns the figure resolver of the run.
func (c *Context) Resolver() *figures.Resolver {
	return c.resolver
}

// Preserved returns the preserved macro list.
func (c *Context) Preserved() []string {
	return append([]string(nil), c.preserved...)
}

func (c *Context) addPreserved(macros ...string) {
	for _, m := range macros {
		m = strings.TrimSpace(m)
		if m == "" || contains(c.preserved, m) {
			continue
		}
		c.preserved = append(c.preserved, m)
	}
}

// addLiterals appends literal handlers in key order, skipping macros that
// already have one.
func (c *Context) addLiterals(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if c.hasLiteral(k) {
			continue
		}
		c.handlers = append(c.handlers, Literal{From: k, To: m[k]})
	}
}

func (c *Context) hasLiteral(from string) bool {
	for _, h := range c.handlers {
		if l, ok := h.(Literal); ok && l.From == from {
			return true
		}
	}
	return false
}

func isTeX(format string) bool {
	return format == "latex" || format == "tex"
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func snippet(n pandoc.Node) string {
	var s string
	if raw, ok := n.(*pandoc.RawBlock); ok {
		s = raw.Text
	} else {
		s = pandoc.Stringify(n)
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
