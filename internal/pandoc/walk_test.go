package pandoc

import (
	"errors"
	"testing"
)

func TestWalk_ReplaceIsNotRevisited(t *testing.T) {
	nodes := []Node{
		&Para{Inlines: []Node{&Str{Text: "a"}, &Space{}, &Str{Text: "b"}}},
	}
	visits := 0
	out, err := Walk(nodes, func(n Node) (Result, error) {
		s, ok := n.(*Str)
		if !ok {
			return Keep(), nil
		}
		visits++
		// The replacement is itself a Str; it must not be visited again.
		return Replace(&Str{Text: s.Text + s.Text}), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if visits != 2 {
		t.Errorf("expected 2 visits, got %d", visits)
	}
	para := out[0].(*Para)
	if got := Stringify(para); got != "aa bb" {
		t.Errorf("expected %q, got %q", "aa bb", got)
	}
}

func TestWalk_DeleteAndSplice(t *testing.T) {
	nodes := []Node{
		&RawBlock{Format: "html", Text: "<hr>"},
		&Div{Blocks: []Node{&Plain{Inlines: []Node{&Str{Text: "x"}}}}},
	}
	out, err := Walk(nodes, func(n Node) (Result, error) {
		switch n := n.(type) {
		case *RawBlock:
			return Delete(), nil
		case *Str:
			return Replace(&Str{Text: n.Text}, &Space{}, &Str{Text: n.Text}), nil
		}
		return Keep(), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected raw block to be deleted, got %d blocks", len(out))
	}
	plain := out[0].(*Div).Blocks[0].(*Plain)
	if len(plain.Inlines) != 3 {
		t.Errorf("expected 3 spliced inlines, got %d", len(plain.Inlines))
	}
}

func TestWalk_DescendsIntoGenericPayload(t *testing.T) {
	doc, err := Unmarshal([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var found []string
	_, err = Walk(doc.Blocks, func(n Node) (Result, error) {
		if raw, ok := n.(*RawInline); ok {
			found = append(found, raw.Text)
			return Delete(), nil
		}
		return Keep(), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One in the first paragraph, one inside the table cell.
	if len(found) != 2 || found[1] != `\ref{t}` {
		t.Errorf("expected both raw inlines to be visited, got %v", found)
	}
}

func TestWalk_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Walk([]Node{&Para{Inlines: []Node{&Str{Text: "x"}}}}, func(n Node) (Result, error) {
		if _, ok := n.(*Str); ok {
			return Keep(), boom
		}
		return Keep(), nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
