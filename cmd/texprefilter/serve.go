package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dgallion1/texprefilter/internal/api"
	"github.com/dgallion1/texprefilter/internal/metrics"
	"github.com/dgallion1/texprefilter/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	cmd.Flags().String("port", "", "Listen port")
	a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	log := a.logger(os.Stdout, true)
	ctx := cmd.Context()

	m := metrics.NewMetrics()
	conv, err := a.converter(m, log)
	if err != nil {
		return err
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(a.cfg, conv, m, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, m, log, a.cfg)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. Requests drain before the queue closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting texprefilter", "port", a.cfg.Port, "pandoc", a.cfg.PandocPath, "pandoc_available", a.pandoc().Available(), "workers", a.cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return err
	}
	<-done
	return nil
}
