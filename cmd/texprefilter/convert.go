package main

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/dgallion1/texprefilter/internal/parser"
	"github.com/dgallion1/texprefilter/internal/pipeline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var from, to, outDir string

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Read, filter and write documents",
		Long: `Reads each file with pandoc (or the built-in markdown reader), filters it
and writes it in the output format. Without --output-dir the results are
written to stdout one after another.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd, args, from, to, outDir)
		},
	}
	cmd.Flags().StringVarP(&from, "from", "f", "", "Reader format (default: from the file extension)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Writer format (default: to_format)")
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "Directory for the converted files")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, files []string, from, to, outDir string) error {
	log := a.logger(cmd.ErrOrStderr(), false)
	conv, err := a.converter(nil, log)
	if err != nil {
		return err
	}
	if to == "" {
		to = a.cfg.ToFormat
	}

	fs := afero.NewOsFs()
	if outDir != "" {
		if err := fs.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	failed := 0
	for _, file := range files {
		format := from
		if format == "" {
			if format, err = parser.FormatForFile(file); err != nil {
				log.Error("skipping file", "file", file, "error", err)
				failed++
				continue
			}
		}

		src, err := fs.Open(file)
		if err != nil {
			log.Error("open failed", "file", file, "error", err)
			failed++
			continue
		}
		var out bytes.Buffer
		stats, err := conv.Convert(cmd.Context(), src, format, to, &out, nil)
		src.Close()
		if err != nil {
			log.Error("conversion failed", "file", file, "error", err)
			failed++
			continue
		}

		if outDir == "" {
			cmd.OutOrStdout().Write(out.Bytes())
		} else {
			dest := filepath.Join(outDir, pipeline.OutputName(filepath.Base(file), to))
			if err := afero.WriteFile(fs, dest, out.Bytes(), 0o644); err != nil {
				log.Error("write failed", "file", dest, "error", err)
				failed++
				continue
			}
			log.Info("converted", "file", file, "output", dest, "environments", stats.Environments, "figures", stats.Figures)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
