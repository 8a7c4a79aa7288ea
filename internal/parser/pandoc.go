package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/dgallion1/texprefilter/internal/pandoc"
)

// PandocParser reads and writes documents by running the pandoc executable
// with JSON on one side of the conversion.
type PandocParser struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// NewPandocParser returns a parser running the pandoc at path ("pandoc" on
// $PATH when empty). args are appended to every invocation.
func NewPandocParser(path string, args []string, timeout time.Duration) *PandocParser {
	if path == "" {
		path = "pandoc"
	}
	return &PandocParser{Path: path, Args: args, Timeout: timeout}
}

// Available reports whether the pandoc executable can be found.
func (p *PandocParser) Available() bool {
	_, err := exec.LookPath(p.Path)
	return err == nil
}

// Parse converts r from format to a pandoc document. LaTeX is read with the
// raw_tex extension so unknown environments survive as raw blocks.
func (p *PandocParser) Parse(ctx context.Context, r io.Reader, format string) (*pandoc.Document, error) {
	var out bytes.Buffer
	if err := p.run(ctx, r, &out, "--from", readerFormat(format), "--to", "json"); err != nil {
		return nil, err
	}
	doc, err := pandoc.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("pandoc output: %w", err)
	}
	return doc, nil
}

// Render writes doc to w in format.
func (p *PandocParser) Render(ctx context.Context, doc *pandoc.Document, format string, w io.Writer) error {
	var in bytes.Buffer
	if err := pandoc.Encode(&in, doc); err != nil {
		return err
	}
	return p.run(ctx, &in, w, "--from", "json", "--to", format)
}

func (p *PandocParser) run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	path, err := exec.LookPath(p.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPandocNotFound, p.Path)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, append(args, p.Args...)...)
	var stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("pandoc %s: %w", strings.Join(args, " "), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("pandoc %s: exit status %d: %s", strings.Join(args, " "), exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("pandoc %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

func readerFormat(format string) string {
	switch format {
	case "latex", "tex":
		return "latex+raw_tex"
	case "md":
		return "markdown"
	}
	return format
}
