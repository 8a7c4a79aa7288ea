package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/texprefilter/internal/pandoc"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrPandocNotFound    = errors.New("pandoc executable not found")
)

// Parser converts source markup into a pandoc document. Implementations must
// be reentrant: the filter calls Parse again while a walk over an earlier
// result is still in progress.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, format string) (*pandoc.Document, error)
}

// Renderer writes a pandoc document in an output format.
type Renderer interface {
	Render(ctx context.Context, doc *pandoc.Document, format string, w io.Writer) error
}

// SupportedExtensions maps source file extensions to reader formats.
var SupportedExtensions = map[string]string{
	".tex":      "latex",
	".latex":    "latex",
	".ltx":      "latex",
	".md":       "markdown",
	".markdown": "markdown",
	".json":     "json",
	".html":     "html",
	".htm":      "html",
	".rst":      "rst",
}

// FormatForFile returns the reader format for a filename.
func FormatForFile(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := SupportedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	return format, nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, err := FormatForFile(filename)
	return err == nil
}

// ForFormat returns the parser for a reader format. Pandoc JSON is decoded
// in-process. Markdown goes through pandoc when it is available and through
// the goldmark reader otherwise. Every other format needs pandoc.
func ForFormat(format string, pd *PandocParser) (Parser, error) {
	switch strings.ToLower(format) {
	case "json":
		return JSONParser{}, nil
	case "markdown", "md", "commonmark", "gfm":
		if pd != nil && pd.Available() {
			return pd, nil
		}
		return &MarkdownParser{}, nil
	case "":
		return nil, fmt.Errorf("%w: empty format", ErrUnsupportedFormat)
	}
	if pd == nil || !pd.Available() {
		return nil, fmt.Errorf("%w: needed to read %s", ErrPandocNotFound, format)
	}
	return pd, nil
}

// JSONParser reads documents that are already pandoc JSON.
type JSONParser struct{}

func (JSONParser) Parse(_ context.Context, r io.Reader, _ string) (*pandoc.Document, error) {
	return pandoc.Decode(r)
}

// Render writes doc as pandoc JSON.
func (JSONParser) Render(_ context.Context, doc *pandoc.Document, _ string, w io.Writer) error {
	return pandoc.Encode(w, doc)
}

// RendererFor returns the renderer for a writer format. Pandoc JSON is
// encoded in-process; every other format needs pandoc.
func RendererFor(format string, pd *PandocParser) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return JSONParser{}, nil
	case "":
		return nil, fmt.Errorf("%w: empty output format", ErrUnsupportedFormat)
	}
	if pd == nil || !pd.Available() {
		return nil, fmt.Errorf("%w: needed to write %s", ErrPandocNotFound, format)
	}
	return pd, nil
}
