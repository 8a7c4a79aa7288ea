package pandoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when the JSON does not follow pandoc's shape.
var ErrMalformed = errors.New("pandoc: malformed document")

// element is the {"t": ..., "c": ...} wire form of a node.
type element struct {
	T string `json:"t"`
	C any    `json:"c,omitempty"`
}

type wireDocument struct {
	APIVersion []int          `json:"pandoc-api-version"`
	Meta       map[string]any `json:"meta"`
	Blocks     []any          `json:"blocks"`
}

// Decode reads one pandoc JSON document from r.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw wireDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode pandoc json: %w", err)
	}
	if raw.Blocks == nil && raw.APIVersion == nil {
		return nil, fmt.Errorf("%w: missing blocks and pandoc-api-version", ErrMalformed)
	}

	doc := &Document{
		APIVersion: raw.APIVersion,
		Meta:       make(map[string]Node, len(raw.Meta)),
	}
	for k, v := range raw.Meta {
		n, err := toNode(v)
		if err != nil {
			return nil, fmt.Errorf("meta %q: %w", k, err)
		}
		doc.Meta[k] = n
	}
	blocks, err := toNodes(raw.Blocks)
	if err != nil {
		return nil, err
	}
	doc.Blocks = blocks
	return doc, nil
}

// Encode writes doc to w as pandoc JSON.
func Encode(w io.Writer, doc *Document) error {
	version := doc.APIVersion
	if version == nil {
		version = APIVersion
	}
	meta := make(map[string]any, len(doc.Meta))
	for k, v := range doc.Meta {
		meta[k] = fromNode(v)
	}
	return json.NewEncoder(w).Encode(wireDocument{
		APIVersion: version,
		Meta:       meta,
		Blocks:     fromNodes(doc.Blocks),
	})
}

// Marshal returns the pandoc JSON of doc.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal parses pandoc JSON bytes.
func Unmarshal(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

func toNodes(v any) ([]Node, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected element list, got %T", ErrMalformed, v)
	}
	out := make([]Node, 0, len(list))
	for _, item := range list {
		n, err := toNode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func toNode(v any) (Node, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected element, got %T", ErrMalformed, v)
	}
	tag, ok := obj["t"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: element without tag", ErrMalformed)
	}
	c := obj["c"]

	switch tag {
	case "Str":
		s, err := asString(c)
		return &Str{Text: s}, err
	case "Space":
		return &Space{}, nil
	case "SoftBreak":
		return &SoftBreak{}, nil
	case "LineBreak":
		return &LineBreak{}, nil
	case "HorizontalRule":
		return &HorizontalRule{}, nil
	case "Emph":
		ins, err := toNodes(c)
		return &Emph{Inlines: ins}, err
	case "Strong":
		ins, err := toNodes(c)
		return &Strong{Inlines: ins}, err
	case "Plain":
		ins, err := toNodes(c)
		return &Plain{Inlines: ins}, err
	case "Para":
		ins, err := toNodes(c)
		return &Para{Inlines: ins}, err
	case "BlockQuote":
		bs, err := toNodes(c)
		return &BlockQuote{Blocks: bs}, err
	case "RawInline", "RawBlock":
		parts, err := asTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		format, err1 := asString(parts[0])
		text, err2 := asString(parts[1])
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		if tag == "RawInline" {
			return &RawInline{Format: format, Text: text}, nil
		}
		return &RawBlock{Format: format, Text: text}, nil
	case "Math":
		parts, err := asTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("Math: %w", err)
		}
		mt, ok := parts[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: Math without type", ErrMalformed)
		}
		typ, _ := mt["t"].(string)
		text, err := asString(parts[1])
		return &Math{Type: MathType(typ), Text: text}, err
	case "Code", "CodeBlock":
		parts, err := asTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		attr, err1 := toAttr(parts[0])
		text, err2 := asString(parts[1])
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		if tag == "Code" {
			return &Code{Attr: attr, Text: text}, nil
		}
		return &CodeBlock{Attr: attr, Text: text}, nil
	case "Span", "Div":
		parts, err := asTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		attr, err := toAttr(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		children, err := toNodes(parts[1])
		if err != nil {
			return nil, err
		}
		if tag == "Span" {
			return &Span{Attr: attr, Inlines: children}, nil
		}
		return &Div{Attr: attr, Blocks: children}, nil
	case "Link", "Image":
		parts, err := asTuple(c, 3)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		attr, err := toAttr(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		ins, err := toNodes(parts[1])
		if err != nil {
			return nil, err
		}
		target, err := toTarget(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		if tag == "Link" {
			return &Link{Attr: attr, Inlines: ins, Target: target}, nil
		}
		return &Image{Attr: attr, Inlines: ins, Target: target}, nil
	case "Header":
		parts, err := asTuple(c, 3)
		if err != nil {
			return nil, fmt.Errorf("Header: %w", err)
		}
		level, err := asInt(parts[0])
		if err != nil {
			return nil, fmt.Errorf("Header: %w", err)
		}
		attr, err := toAttr(parts[1])
		if err != nil {
			return nil, fmt.Errorf("Header: %w", err)
		}
		ins, err := toNodes(parts[2])
		return &Header{Level: level, Attr: attr, Inlines: ins}, err
	case "BulletList":
		items, err := toItems(c)
		return &BulletList{Items: items}, err
	case "OrderedList":
		parts, err := asTuple(c, 2)
		if err != nil {
			return nil, fmt.Errorf("OrderedList: %w", err)
		}
		la, err := asTuple(parts[0], 3)
		if err != nil {
			return nil, fmt.Errorf("OrderedList: %w", err)
		}
		start, err := asInt(la[0])
		if err != nil {
			return nil, fmt.Errorf("OrderedList: %w", err)
		}
		items, err := toItems(parts[1])
		return &OrderedList{Start: start, Style: tagOf(la[1]), Delim: tagOf(la[2]), Items: items}, err
	default:
		content, err := decodeValue(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return &Generic{T: tag, C: content}, nil
	}
}

// decodeValue converts a raw JSON value into Generic payload form.
func decodeValue(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if _, ok := v["t"].(string); ok {
			return toNode(v)
		}
		out := make(map[string]any, len(v))
		for k, x := range v {
			d, err := decodeValue(x)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			d, err := decodeValue(x)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	default:
		return v, nil
	}
}

func toItems(v any) ([][]Node, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected list items, got %T", ErrMalformed, v)
	}
	items := make([][]Node, 0, len(list))
	for _, it := range list {
		blocks, err := toNodes(it)
		if err != nil {
			return nil, err
		}
		items = append(items, blocks)
	}
	return items, nil
}

func toAttr(v any) (Attr, error) {
	parts, err := asTuple(v, 3)
	if err != nil {
		return Attr{}, err
	}
	id, err := asString(parts[0])
	if err != nil {
		return Attr{}, err
	}
	attr := Attr{ID: id}
	classes, _ := parts[1].([]any)
	for _, c := range classes {
		s, err := asString(c)
		if err != nil {
			return Attr{}, err
		}
		attr.Classes = append(attr.Classes, s)
	}
	kvs, _ := parts[2].([]any)
	for _, kv := range kvs {
		pair, err := asTuple(kv, 2)
		if err != nil {
			return Attr{}, err
		}
		k, err1 := asString(pair[0])
		val, err2 := asString(pair[1])
		if err := errors.Join(err1, err2); err != nil {
			return Attr{}, err
		}
		attr.KVs = append(attr.KVs, KV{Key: k, Value: val})
	}
	return attr, nil
}

func toTarget(v any) (Target, error) {
	parts, err := asTuple(v, 2)
	if err != nil {
		return Target{}, err
	}
	url, err1 := asString(parts[0])
	title, err2 := asString(parts[1])
	return Target{URL: url, Title: title}, errors.Join(err1, err2)
}

func asTuple(v any, n int) ([]any, error) {
	list, ok := v.([]any)
	if !ok || len(list) < n {
		return nil, fmt.Errorf("%w: expected %d-tuple, got %T", ErrMalformed, n, v)
	}
	return list, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %T", ErrMalformed, v)
	}
	return s, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected number, got %T", ErrMalformed, v)
}

func tagOf(v any) string {
	if obj, ok := v.(map[string]any); ok {
		s, _ := obj["t"].(string)
		return s
	}
	return ""
}

func fromNodes(nodes []Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fromNode(n))
	}
	return out
}

func fromItems(items [][]Node) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, fromNodes(it))
	}
	return out
}

// Attr returns the attributes that lead the payload of elements such as
// Figure and Table.
func (g *Generic) Attr() (Attr, bool) {
	parts, ok := g.C.([]any)
	if !ok || len(parts) == 0 {
		return Attr{}, false
	}
	a, err := toAttr(parts[0])
	return a, err == nil
}

// SetAttr replaces the leading attributes of the payload.
func (g *Generic) SetAttr(a Attr) {
	parts, ok := g.C.([]any)
	if !ok || len(parts) == 0 {
		return
	}
	classes := make([]any, 0, len(a.Classes))
	for _, c := range a.Classes {
		classes = append(classes, c)
	}
	kvs := make([]any, 0, len(a.KVs))
	for _, kv := range a.KVs {
		kvs = append(kvs, []any{kv.Key, kv.Value})
	}
	parts[0] = []any{a.ID, classes, kvs}
}

func fromAttr(a Attr) []any {
	classes := a.Classes
	if classes == nil {
		classes = []string{}
	}
	kvs := make([][]string, 0, len(a.KVs))
	for _, kv := range a.KVs {
		kvs = append(kvs, []string{kv.Key, kv.Value})
	}
	return []any{a.ID, classes, kvs}
}

func fromNode(n Node) any {
	switch n := n.(type) {
	case *Str:
		return element{T: "Str", C: n.Text}
	case *Space, *SoftBreak, *LineBreak, *HorizontalRule:
		return element{T: n.Tag()}
	case *Emph:
		return element{T: "Emph", C: fromNodes(n.Inlines)}
	case *Strong:
		return element{T: "Strong", C: fromNodes(n.Inlines)}
	case *Plain:
		return element{T: "Plain", C: fromNodes(n.Inlines)}
	case *Para:
		return element{T: "Para", C: fromNodes(n.Inlines)}
	case *BlockQuote:
		return element{T: "BlockQuote", C: fromNodes(n.Blocks)}
	case *RawInline:
		return element{T: "RawInline", C: []any{n.Format, n.Text}}
	case *RawBlock:
		return element{T: "RawBlock", C: []any{n.Format, n.Text}}
	case *Math:
		return element{T: "Math", C: []any{element{T: string(n.Type)}, n.Text}}
	case *Code:
		return element{T: "Code", C: []any{fromAttr(n.Attr), n.Text}}
	case *CodeBlock:
		return element{T: "CodeBlock", C: []any{fromAttr(n.Attr), n.Text}}
	case *Span:
		return element{T: "Span", C: []any{fromAttr(n.Attr), fromNodes(n.Inlines)}}
	case *Div:
		return element{T: "Div", C: []any{fromAttr(n.Attr), fromNodes(n.Blocks)}}
	case *Link:
		return element{T: "Link", C: []any{fromAttr(n.Attr), fromNodes(n.Inlines), []any{n.Target.URL, n.Target.Title}}}
	case *Image:
		return element{T: "Image", C: []any{fromAttr(n.Attr), fromNodes(n.Inlines), []any{n.Target.URL, n.Target.Title}}}
	case *Header:
		return element{T: "Header", C: []any{n.Level, fromAttr(n.Attr), fromNodes(n.Inlines)}}
	case *BulletList:
		return element{T: "BulletList", C: fromItems(n.Items)}
	case *OrderedList:
		style, delim := n.Style, n.Delim
		if style == "" {
			style = "Decimal"
		}
		if delim == "" {
			delim = "Period"
		}
		attrs := []any{n.Start, element{T: style}, element{T: delim}}
		return element{T: "OrderedList", C: []any{attrs, fromItems(n.Items)}}
	case *Generic:
		return element{T: n.T, C: encodeValue(n.C)}
	}
	return nil
}

func encodeValue(v any) any {
	switch v := v.(type) {
	case Node:
		return fromNode(v)
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = encodeValue(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = encodeValue(x)
		}
		return out
	default:
		return v
	}
}
