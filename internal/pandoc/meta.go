package pandoc

import (
	"sort"
	"strings"
)

// MetaString builds a MetaString value.
func MetaString(s string) Node { return &Generic{T: "MetaString", C: s} }

// MetaList builds a MetaList value.
func MetaList(values ...Node) Node {
	items := make([]any, 0, len(values))
	for _, v := range values {
		items = append(items, v)
	}
	return &Generic{T: "MetaList", C: items}
}

// MetaMap builds a MetaMap value.
func MetaMap(entries map[string]Node) Node {
	m := make(map[string]any, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &Generic{T: "MetaMap", C: m}
}

// Stringify returns the plain text of a node: the string of a MetaString,
// the concatenated text of inline content, the raw text of raw elements.
func Stringify(n Node) string {
	var sb strings.Builder
	stringify(&sb, n)
	return sb.String()
}

func stringify(sb *strings.Builder, v any) {
	switch n := v.(type) {
	case *Str:
		sb.WriteString(n.Text)
	case *Space:
		sb.WriteByte(' ')
	case *SoftBreak, *LineBreak:
		sb.WriteByte('\n')
	case *Code:
		sb.WriteString(n.Text)
	case *Math:
		sb.WriteString(n.Text)
	case *RawInline:
		sb.WriteString(n.Text)
	case *Emph:
		stringifyAll(sb, n.Inlines)
	case *Strong:
		stringifyAll(sb, n.Inlines)
	case *Span:
		stringifyAll(sb, n.Inlines)
	case *Link:
		stringifyAll(sb, n.Inlines)
	case *Image:
		stringifyAll(sb, n.Inlines)
	case *Plain:
		stringifyAll(sb, n.Inlines)
	case *Para:
		stringifyAll(sb, n.Inlines)
	case *Generic:
		switch c := n.C.(type) {
		case string:
			sb.WriteString(c)
		case bool:
			if c {
				sb.WriteString("true")
			}
		default:
			stringify(sb, c)
		}
	case []any:
		for _, x := range n {
			stringify(sb, x)
		}
	}
}

func stringifyAll(sb *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		stringify(sb, n)
	}
}

// MetaStrings returns the text of each entry of a MetaList, or a one-element
// slice for any scalar metadata value. Empty strings are skipped.
func MetaStrings(n Node) []string {
	g, ok := n.(*Generic)
	if !ok {
		if s := Stringify(n); s != "" {
			return []string{s}
		}
		return nil
	}
	if g.T != "MetaList" {
		if s := strings.TrimSpace(Stringify(g)); s != "" {
			return []string{s}
		}
		return nil
	}
	items, _ := g.C.([]any)
	var out []string
	for _, it := range items {
		if node, ok := it.(Node); ok {
			if s := strings.TrimSpace(Stringify(node)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// MetaEntries returns the entries of a MetaMap with their keys in sorted
// order. Other values yield nil.
func MetaEntries(n Node) ([]string, map[string]Node) {
	g, ok := n.(*Generic)
	if !ok || g.T != "MetaMap" {
		return nil, nil
	}
	raw, _ := g.C.(map[string]any)
	keys := make([]string, 0, len(raw))
	entries := make(map[string]Node, len(raw))
	for k, v := range raw {
		if node, ok := v.(Node); ok {
			keys = append(keys, k)
			entries[k] = node
		}
	}
	sort.Strings(keys)
	return keys, entries
}
