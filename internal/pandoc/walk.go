package pandoc

// Result is a walk function's decision for one node.
type Result struct {
	nodes   []Node
	replace bool
}

// Keep leaves the node in place and descends into its children.
func Keep() Result { return Result{} }

// Replace splices nodes in place of the visited node. The replacement is
// final: it is not walked again.
func Replace(nodes ...Node) Result { return Result{nodes: nodes, replace: true} }

// Delete removes the visited node.
func Delete() Result { return Result{replace: true} }

// Replaced reports whether the node is replaced (or deleted).
func (r Result) Replaced() bool { return r.replace }

// Nodes returns the replacement nodes; empty for Keep and Delete.
func (r Result) Nodes() []Node { return r.nodes }

// WalkFunc is applied to every node found in an element list.
type WalkFunc func(Node) (Result, error)

// Walk applies fn to each node of nodes, parents before children, and
// returns the rewritten list. The first error stops the walk.
func Walk(nodes []Node, fn WalkFunc) ([]Node, error) {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		res, err := fn(n)
		if err != nil {
			return nil, err
		}
		if res.replace {
			out = append(out, res.nodes...)
			continue
		}
		if err := walkChildren(n, fn); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// WalkChildren applies fn to the nodes below n without visiting n itself.
func WalkChildren(n Node, fn WalkFunc) error {
	return walkChildren(n, fn)
}

func walkChildren(n Node, fn WalkFunc) error {
	var err error
	switch n := n.(type) {
	case *Emph:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Strong:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Link:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Image:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Span:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Plain:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Para:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *Header:
		n.Inlines, err = Walk(n.Inlines, fn)
	case *BlockQuote:
		n.Blocks, err = Walk(n.Blocks, fn)
	case *Div:
		n.Blocks, err = Walk(n.Blocks, fn)
	case *BulletList:
		err = walkItems(n.Items, fn)
	case *OrderedList:
		err = walkItems(n.Items, fn)
	case *Generic:
		n.C, err = walkValue(n.C, fn)
	}
	return err
}

func walkItems(items [][]Node, fn WalkFunc) error {
	for i := range items {
		walked, err := Walk(items[i], fn)
		if err != nil {
			return err
		}
		items[i] = walked
	}
	return nil
}

// walkValue walks a Generic payload. Only nodes that sit in a list are
// offered to fn; a lone node (a caption, a metadata map value) is only
// descended into.
func walkValue(v any, fn WalkFunc) (any, error) {
	switch v := v.(type) {
	case Node:
		return v, walkChildren(v, fn)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			n, ok := item.(Node)
			if !ok {
				w, err := walkValue(item, fn)
				if err != nil {
					return nil, err
				}
				out = append(out, w)
				continue
			}
			res, err := fn(n)
			if err != nil {
				return nil, err
			}
			if res.replace {
				for _, r := range res.nodes {
					out = append(out, r)
				}
				continue
			}
			if err := walkChildren(n, fn); err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case map[string]any:
		for k, x := range v {
			w, err := walkValue(x, fn)
			if err != nil {
				return nil, err
			}
			v[k] = w
		}
		return v, nil
	}
	return v, nil
}
