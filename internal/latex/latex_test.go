package latex

import (
	"reflect"
	"strings"
	"testing"
)

func TestMatchEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Environment
		ok    bool
	}{
		{
			name:  "plain",
			input: "\\begin{Exa}\\label{ex:a}\n Body text \\end{Exa}",
			want:  Environment{Name: "Exa", Body: "\\label{ex:a}\n Body text "},
			ok:    true,
		},
		{
			name:  "title",
			input: `\begin{theorem}[Bayes' rule]P(A|B)\end{theorem}`,
			want:  Environment{Name: "theorem", Title: "Bayes' rule", HasTitle: true, Body: "P(A|B)"},
			ok:    true,
		},
		{
			name:  "title with nested brackets",
			input: `\begin{Exa}[see [1]]x_{[2]}\end{Exa}`,
			want:  Environment{Name: "Exa", Title: "see [1]", HasTitle: true, Body: "x_{[2]}"},
			ok:    true,
		},
		{
			name:  "same-name nesting is greedy",
			input: `\begin{Exa}a\begin{Exa}b\end{Exa}c\end{Exa}`,
			want:  Environment{Name: "Exa", Body: `a\begin{Exa}b\end{Exa}c`},
			ok:    true,
		},
		{
			name:  "first unmatched begin is skipped",
			input: `\begin{Foo}\begin{Bar}x\end{Bar}`,
			want:  Environment{Name: "Bar", Body: "x"},
			ok:    true,
		},
		{
			name:  "starred name",
			input: `\begin{align*}a&=b\end{align*}`,
			want:  Environment{Name: "align*", Body: "a&=b"},
			ok:    true,
		},
		{
			name:  "unmatched",
			input: `\begin{Foo} no end tag`,
			ok:    false,
		},
		{
			name:  "mismatched end",
			input: `\begin{Foo}x\end{Bar}`,
			ok:    false,
		},
	}
	for _, tt := range tests {
		got, ok := MatchEnvironment(tt.input)
		if ok != tt.ok {
			t.Errorf("%s: expected ok=%v, got %v", tt.name, tt.ok, ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.want, got)
		}
	}
}

func TestExtractLabel(t *testing.T) {
	label, body, ok := ExtractLabel("\\label{ex:a}\n Body text ")
	if !ok || label != "ex:a" {
		t.Fatalf("expected label ex:a, got %q (ok=%v)", label, ok)
	}
	if body != "\n Body text " {
		t.Errorf("expected label stripped, got %q", body)
	}

	label, body, _ = ExtractLabel("Blah\n    \\label{ex:some_example}\n")
	if label != "ex:some_example" || body != "Blah\n" {
		t.Errorf("expected leading whitespace stripped with label, got %q / %q", label, body)
	}

	if _, body, ok := ExtractLabel("no label here"); ok || body != "no label here" {
		t.Errorf("expected no label, got ok=%v body=%q", ok, body)
	}
}

func TestReplaceGraphics_IndependentMatches(t *testing.T) {
	calls := 0
	in := `\includegraphics{a.png} and \includegraphics[width=2in]{ b.pdf }`
	got := ReplaceGraphics(in, func(name string) string {
		calls++
		return "figs/" + strings.ToUpper(name)
	})
	want := `\includegraphics{figs/A.PNG} and \includegraphics[width=2in]{figs/B.PDF}`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if calls != 2 {
		t.Errorf("expected 2 resolutions, got %d", calls)
	}
}

func TestReplaceGraphics_SameTargetTwice(t *testing.T) {
	resolve := func(name string) string { return "dir/" + name }
	got := ReplaceGraphics(`\includegraphics{a.png}\includegraphics{a.png}`, resolve)
	if got != `\includegraphics{dir/a.png}\includegraphics{dir/a.png}` {
		t.Errorf("expected both occurrences resolved identically, got %q", got)
	}
}

func TestParseGraphicsPath(t *testing.T) {
	dirs, ok := ParseGraphicsPath(`\graphicspath{{/tmp/bwillar0/}{../figures/}{./figures/}{./}}`)
	if !ok {
		t.Fatal("expected directive to parse")
	}
	want := []string{"/tmp/bwillar0/", "../figures/", "./figures/", "./"}
	if !reflect.DeepEqual(dirs, want) {
		t.Errorf("expected %v, got %v", want, dirs)
	}

	if _, ok := ParseGraphicsPath(`\graphicspath{figures/}`); ok {
		t.Error("expected a directive without inner groups to be rejected")
	}
	if !HasGraphicsPath(`\graphicspath{figures/}`) {
		t.Error("expected HasGraphicsPath to see the malformed directive")
	}
}

func TestWrapEquation(t *testing.T) {
	if got := WrapEquation(`\label{eq1} hey`); got != "\\begin{equation}\n\\label{eq1} hey\n\\end{equation}" {
		t.Errorf("unexpected numbered wrap: %q", got)
	}
	if got := WrapEquation("x = 1"); got != "\\begin{equation*}\nx = 1\n\\end{equation*}" {
		t.Errorf("unexpected starred wrap: %q", got)
	}
	if !IsEquation(" \\begin{equation*}\nx\n\\end{equation*}") {
		t.Error("expected wrapped body to be recognized")
	}
}

func TestAnchorTeX(t *testing.T) {
	got := AnchorTeX("eq:exogenous_model", 2)
	want := `\begin{equation}\tag{2}\label{eq:exogenous_model}\end{equation}`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
