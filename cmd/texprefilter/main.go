package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/texprefilter/internal/config"
	"github.com/dgallion1/texprefilter/internal/metrics"
	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/dgallion1/texprefilter/internal/pipeline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the loaded configuration to the subcommands.
type app struct {
	v   *viper.Viper
	cfg config.Config
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	root := &cobra.Command{
		Use:   "texprefilter [output-format]",
		Short: "Pandoc filter for LaTeX environments, references and figures",
		Long: `Reads a pandoc JSON document on stdin and writes the filtered document
to stdout, the way pandoc runs a JSON filter:

  pandoc paper.tex -f latex+raw_tex -t json | texprefilter html | pandoc -f json -t html

Custom environments become numbered divs, \ref-style macros become math,
figures are resolved against the figure search path and display math is
wrapped in equation environments.`,
		Version:           version,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE:              a.runFilter,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("pandoc", "", "Path to the pandoc executable")
	flags.String("source-format", "", "Reader format for environment bodies")
	flags.StringSlice("figure-dir", nil, "Figure search directory (repeatable)")
	flags.String("figure-ext", "", "Extension forced onto figure files")

	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("pandoc_path", flags.Lookup("pandoc"))
	v.BindPFlag("source_format", flags.Lookup("source-format"))
	v.BindPFlag("figure_dirs", flags.Lookup("figure-dir"))
	v.BindPFlag("figure_ext", flags.Lookup("figure-ext"))

	root.AddCommand(newConvertCmd(a), newServeCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) logger(w io.Writer, json bool) *slog.Logger {
	level, _ := a.cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) pandoc() *parser.PandocParser {
	return parser.NewPandocParser(a.cfg.PandocPath, a.cfg.PandocArgs, a.cfg.PandocTimeout)
}

func (a *app) converter(m metrics.Metrics, log *slog.Logger) (*pipeline.Converter, error) {
	fcfg, err := a.cfg.FilterConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.NewConverter(a.pandoc(), fcfg, afero.NewOsFs(), m, log), nil
}

// runFilter is the pandoc JSON filter: JSON in, JSON out. The optional
// argument is the target format pandoc passes to filters.
func (a *app) runFilter(cmd *cobra.Command, args []string) error {
	// stdout carries the document, so logs go to stderr.
	log := a.logger(cmd.ErrOrStderr(), false)
	conv, err := a.converter(nil, log)
	if err != nil {
		return err
	}

	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	stats, err := conv.Convert(cmd.Context(), cmd.InOrStdin(), "json", "json", cmd.OutOrStdout(), nil)
	if err != nil {
		log.Error("filter failed", "target", target, "error", err)
		return err
	}
	log.Debug("filter complete", "target", target, "environments", stats.Environments, "figures", stats.Figures)
	return nil
}
