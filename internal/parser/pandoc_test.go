package parser

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/texprefilter/internal/pandoc"
)

// fakePandoc writes an executable shell script standing in for pandoc and
// returns its path. The script records its arguments next to itself.
func fakePandoc(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "pandoc")
	script := "#!/bin/sh\necho \"$@\" > \"$(dirname \"$0\")/args\"\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func recordedArgs(t *testing.T, pandocPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(pandocPath), "args"))
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestPandocParser_Parse(t *testing.T) {
	path := fakePandoc(t, `cat > /dev/null
printf '%s\n' '{"pandoc-api-version":[1,23,1],"meta":{},"blocks":[{"t":"RawBlock","c":["latex","\\begin{Exa}x\\end{Exa}"]}]}'`)
	p := NewPandocParser(path, []string{"--wrap=none"}, time.Minute)

	doc, err := p.Parse(context.Background(), strings.NewReader(`\begin{Exa}x\end{Exa}`), "latex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, ok := doc.Blocks[0].(*pandoc.RawBlock)
	if !ok || raw.Text != `\begin{Exa}x\end{Exa}` {
		t.Errorf("unexpected block %#v", doc.Blocks[0])
	}
	if got := recordedArgs(t, path); got != "--from latex+raw_tex --to json --wrap=none" {
		t.Errorf("unexpected pandoc arguments %q", got)
	}
}

func TestPandocParser_Render(t *testing.T) {
	path := fakePandoc(t, "cat")
	p := NewPandocParser(path, nil, 0)

	var out bytes.Buffer
	doc := pandoc.NewDocument(&pandoc.Para{Inlines: []pandoc.Node{&pandoc.Str{Text: "hello"}}})
	if err := p.Render(context.Background(), doc, "markdown", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `{"t":"Str","c":"hello"}`) {
		t.Errorf("expected the JSON document on stdin, got %s", out.String())
	}
	if got := recordedArgs(t, path); got != "--from json --to markdown" {
		t.Errorf("unexpected pandoc arguments %q", got)
	}
}

func TestPandocParser_Failure(t *testing.T) {
	path := fakePandoc(t, "echo 'Unknown input format nope' >&2\nexit 21")
	p := NewPandocParser(path, nil, 0)

	_, err := p.Parse(context.Background(), strings.NewReader("x"), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "exit status 21") || !strings.Contains(err.Error(), "Unknown input format nope") {
		t.Errorf("expected exit status and stderr in error, got %v", err)
	}
}

func TestPandocParser_NotFound(t *testing.T) {
	p := NewPandocParser(filepath.Join(t.TempDir(), "no-such-pandoc"), nil, 0)
	if p.Available() {
		t.Fatal("expected pandoc to be unavailable")
	}
	_, err := p.Parse(context.Background(), strings.NewReader("x"), "latex")
	if !errors.Is(err, ErrPandocNotFound) {
		t.Errorf("expected ErrPandocNotFound, got %v", err)
	}
}
