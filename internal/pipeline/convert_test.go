package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/texprefilter/internal/filter"
	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/spf13/afero"
)

const markdownSource = "See \\eqref{eq1}.\n\n\\begin{Exa}\\label{ex:a}\nHello\n\\end{Exa}\n\n![plot](a.png)\n"

// newTestConverter returns a converter whose pandoc binary does not exist,
// so only the in-process readers and the JSON writer are available.
func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	missing := parser.NewPandocParser(filepath.Join(t.TempDir(), "no-such-pandoc"), nil, 0)
	return NewConverter(missing, filter.DefaultConfig(), afero.NewMemMapFs(), nil, nil)
}

func TestConvert_MarkdownToJSON(t *testing.T) {
	conv := newTestConverter(t)

	var phases []JobStatus
	var out bytes.Buffer
	stats, err := conv.Convert(context.Background(), strings.NewReader(markdownSource), "markdown", "json", &out, func(s JobStatus) {
		phases = append(phases, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPhases := []JobStatus{StatusParsing, StatusFiltering, StatusRendering}
	if !reflect.DeepEqual(phases, wantPhases) {
		t.Errorf("expected phases %v, got %v", wantPhases, phases)
	}
	if stats.Environments["example"] != 1 || stats.Figures != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	got := out.String()
	for _, want := range []string{
		`"ex:a",["example"]`,
		`["env-number","1"]`,
		`{"t":"Math","c":[{"t":"InlineMath"},"\\eqref{eq1}"]}`,
		`"ex:a_math"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %s, got %s", want, got)
		}
	}
	if strings.Contains(got, `\\begin{Exa}`) {
		t.Errorf("expected the environment to be rewritten, got %s", got)
	}
}

func TestConvert_JSONRoundTrip(t *testing.T) {
	conv := newTestConverter(t)
	in := `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"Para","c":[{"t":"Math","c":[{"t":"DisplayMath"},"x=1"]}]}]}`

	var out bytes.Buffer
	if _, err := conv.Convert(context.Background(), strings.NewReader(in), "json", "json", &out, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `\\begin{equation*}\nx=1\n\\end{equation*}`) {
		t.Errorf("expected wrapped equation, got %s", out.String())
	}
}

func TestConvert_EnvironmentWithoutReader(t *testing.T) {
	conv := newTestConverter(t)
	// JSON input carries latex bodies, which need pandoc to parse.
	in := `{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"RawBlock","c":["latex","\\begin{Exa}x\\end{Exa}"]}]}`

	_, err := conv.Convert(context.Background(), strings.NewReader(in), "json", "json", &bytes.Buffer{}, nil)
	if !errors.Is(err, filter.ErrNestedParse) {
		t.Errorf("expected ErrNestedParse, got %v", err)
	}
}

func TestConvert_WriterNeedsPandoc(t *testing.T) {
	conv := newTestConverter(t)

	called := false
	_, err := conv.Convert(context.Background(), strings.NewReader("x"), "markdown", "html", &bytes.Buffer{}, func(JobStatus) {
		called = true
	})
	if !errors.Is(err, parser.ErrPandocNotFound) {
		t.Errorf("expected ErrPandocNotFound, got %v", err)
	}
	if called {
		t.Error("expected the missing writer to be reported before parsing")
	}
}

func TestConvert_MalformedInput(t *testing.T) {
	conv := newTestConverter(t)
	_, err := conv.Convert(context.Background(), strings.NewReader("{"), "json", "json", &bytes.Buffer{}, nil)
	if err == nil || !strings.Contains(err.Error(), "parse json") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		filename, format, want string
	}{
		{"paper.tex", "markdown", "paper.md"},
		{"notes.md", "json", "notes.json"},
		{"notes.md", "html5", "notes.html"},
		{"notes.md", "latex", "notes.tex"},
		{"README", "rst", "README.rst"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.filename, tt.format); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.filename, tt.format, got, tt.want)
		}
	}
}
