// Package pandoc models the pandoc document AST exchanged by JSON filters.
//
// Only the element kinds the prefilter reads or produces are typed; every
// other element decodes to a Generic node that keeps its payload verbatim and
// is still walked, so documents round-trip without loss.
package pandoc

// APIVersion is the pandoc-types version written for documents built here.
var APIVersion = []int{1, 23, 1}

// Node is any element of a pandoc document: a block, an inline or a
// metadata value.
type Node interface {
	Tag() string
}

// Document is the top level of a pandoc JSON document.
type Document struct {
	APIVersion []int
	Meta       map[string]Node
	Blocks     []Node
}

// NewDocument returns a document with the current API version and no metadata.
func NewDocument(blocks ...Node) *Document {
	return &Document{
		APIVersion: append([]int(nil), APIVersion...),
		Meta:       map[string]Node{},
		Blocks:     blocks,
	}
}

// KV is one key-value attribute pair.
type KV struct {
	Key   string
	Value string
}

// Attr is pandoc's (identifier, classes, key-value pairs) triple.
type Attr struct {
	ID      string
	Classes []string
	KVs     []KV
}

// Get returns the value of key and whether it was present.
func (a Attr) Get(key string) (string, bool) {
	for _, kv := range a.KVs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// HasClass reports whether c is one of the classes.
func (a Attr) HasClass(c string) bool {
	for _, cl := range a.Classes {
		if cl == c {
			return true
		}
	}
	return false
}

// Target is a link or image destination.
type Target struct {
	URL   string
	Title string
}

// MathType distinguishes display from inline math.
type MathType string

const (
	DisplayMath MathType = "DisplayMath"
	InlineMath  MathType = "InlineMath"
)

// Inline elements.

type Str struct{ Text string }
type Space struct{}
type SoftBreak struct{}
type LineBreak struct{}
type Emph struct{ Inlines []Node }
type Strong struct{ Inlines []Node }

type Code struct {
	Attr Attr
	Text string
}

type Link struct {
	Attr    Attr
	Inlines []Node
	Target  Target
}

type Image struct {
	Attr    Attr
	Inlines []Node
	Target  Target
}

type Math struct {
	Type MathType
	Text string
}

type RawInline struct {
	Format string
	Text   string
}

type Span struct {
	Attr    Attr
	Inlines []Node
}

// Block elements.

type Plain struct{ Inlines []Node }
type Para struct{ Inlines []Node }

type Header struct {
	Level   int
	Attr    Attr
	Inlines []Node
}

type CodeBlock struct {
	Attr Attr
	Text string
}

type RawBlock struct {
	Format string
	Text   string
}

type BlockQuote struct{ Blocks []Node }

type BulletList struct{ Items [][]Node }

type OrderedList struct {
	Start int
	Style string
	Delim string
	Items [][]Node
}

type HorizontalRule struct{}

type Div struct {
	Attr   Attr
	Blocks []Node
}

// Generic is any element without a typed model above, including metadata
// values. C holds the decoded payload: nested elements are Nodes, lists are
// []any, objects are map[string]any and numbers are json.Number.
type Generic struct {
	T string
	C any
}

func (*Str) Tag() string            { return "Str" }
func (*Space) Tag() string          { return "Space" }
func (*SoftBreak) Tag() string      { return "SoftBreak" }
func (*LineBreak) Tag() string      { return "LineBreak" }
func (*Emph) Tag() string           { return "Emph" }
func (*Strong) Tag() string         { return "Strong" }
func (*Code) Tag() string           { return "Code" }
func (*Link) Tag() string           { return "Link" }
func (*Image) Tag() string          { return "Image" }
func (*Math) Tag() string           { return "Math" }
func (*RawInline) Tag() string      { return "RawInline" }
func (*Span) Tag() string           { return "Span" }
func (*Plain) Tag() string          { return "Plain" }
func (*Para) Tag() string           { return "Para" }
func (*Header) Tag() string         { return "Header" }
func (*CodeBlock) Tag() string      { return "CodeBlock" }
func (*RawBlock) Tag() string       { return "RawBlock" }
func (*BlockQuote) Tag() string     { return "BlockQuote" }
func (*BulletList) Tag() string     { return "BulletList" }
func (*OrderedList) Tag() string    { return "OrderedList" }
func (*HorizontalRule) Tag() string { return "HorizontalRule" }
func (*Div) Tag() string            { return "Div" }
func (g *Generic) Tag() string      { return g.T }
