package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/texprefilter/internal/metrics"
)

// Worker processes a single conversion job.
type Worker struct {
	conv    *Converter
	metrics metrics.Metrics
	log     *slog.Logger
}

func NewWorker(conv *Converter, m metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{conv: conv, metrics: m, log: log}
}

// Process runs parse, filter and render for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "filename", job.Filename, "from", job.From, "to", job.To)

	var out bytes.Buffer
	stats, err := w.conv.Convert(ctx, bytes.NewReader(job.Source()), job.From, job.To, &out, func(s JobStatus) {
		job.SetStatus(s, string(s))
	})
	if err != nil {
		log.Error("conversion failed", "phase", job.Snapshot().Phase, "error", err)
		job.Fail(err)
		w.metrics.ObserveJob(string(StatusFailed), time.Since(start).Seconds())
		return
	}

	job.Complete(out.Bytes(), stats)
	w.metrics.ObserveJob(string(StatusCompleted), time.Since(start).Seconds())
	log.Info("conversion complete", "environments", stats.Environments, "figures", stats.Figures, "bytes", out.Len(), "elapsed", time.Since(start))
}
