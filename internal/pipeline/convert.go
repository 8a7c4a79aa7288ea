package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/texprefilter/internal/filter"
	"github.com/dgallion1/texprefilter/internal/metrics"
	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/spf13/afero"
)

// Stats summarizes what a filter run rewrote.
type Stats struct {
	Environments map[string]int `json:"environments"`
	Figures      int            `json:"figures"`
}

// Converter runs reader -> filter -> writer over one document at a time.
// It is safe for concurrent use: every call gets its own filter context.
type Converter struct {
	pandoc  *parser.PandocParser
	cfg     filter.Config
	fs      afero.Fs
	metrics metrics.Metrics
	log     *slog.Logger
}

func NewConverter(pd *parser.PandocParser, cfg filter.Config, fs afero.Fs, m metrics.Metrics, log *slog.Logger) *Converter {
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Converter{pandoc: pd, cfg: cfg, fs: fs, metrics: m, log: log}
}

// Convert reads src in format from, filters it and writes it to w in format
// to. phase, when non-nil, is called as each stage starts.
func (c *Converter) Convert(ctx context.Context, src io.Reader, from, to string, w io.Writer, phase func(JobStatus)) (Stats, error) {
	if phase == nil {
		phase = func(JobStatus) {}
	}

	reader, err := parser.ForFormat(from, c.pandoc)
	if err != nil {
		return Stats{}, err
	}
	writer, err := parser.RendererFor(to, c.pandoc)
	if err != nil {
		return Stats{}, err
	}

	phase(StatusParsing)
	doc, err := reader.Parse(ctx, src, from)
	if err != nil {
		return Stats{}, fmt.Errorf("parse %s: %w", from, err)
	}

	phase(StatusFiltering)
	fc := c.NewFilter(from)
	if err := fc.Apply(ctx, doc); err != nil {
		return Stats{}, fmt.Errorf("filter: %w", err)
	}
	stats := Stats{Environments: fc.Counters(), Figures: fc.Figures().Len()}

	phase(StatusRendering)
	if err := writer.Render(ctx, doc, to, w); err != nil {
		return stats, fmt.Errorf("render %s: %w", to, err)
	}
	return stats, nil
}

// NewFilter creates the filter context for one document read from format.
// Environment bodies are parsed in the same format, except for pandoc JSON
// input where they are raw source in the configured source format.
func (c *Converter) NewFilter(format string) *filter.Context {
	cfg := c.cfg
	if format != "" && !strings.EqualFold(format, "json") {
		cfg.SourceFormat = format
	}

	opts := []filter.Option{
		filter.WithLogger(c.log),
		filter.WithMetrics(c.metrics),
		filter.WithFS(c.fs),
	}
	if p, err := parser.ForFormat(cfg.SourceFormat, c.pandoc); err != nil {
		c.log.Warn("no reader for environment bodies", "format", cfg.SourceFormat, "error", err)
	} else {
		opts = append(opts, filter.WithParser(p))
	}
	return filter.New(cfg, opts...)
}

// OutputName replaces the extension of filename with one for the writer
// format.
func OutputName(filename, format string) string {
	ext := "." + strings.ToLower(format)
	switch strings.ToLower(format) {
	case "markdown", "gfm", "commonmark":
		ext = ".md"
	case "latex":
		ext = ".tex"
	case "html4", "html5":
		ext = ".html"
	case "plain":
		ext = ".txt"
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}
