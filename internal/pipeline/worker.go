package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/report"
)

// Generator produces a report for a query.
type Generator interface {
	Generate(ctx context.Context, query string) (*report.Report, error)
}

// Worker processes a single report job.
type Worker struct {
	gen     Generator
	log     *slog.Logger
	timeout time.Duration
}

func NewWorker(gen Generator, log *slog.Logger, timeout time.Duration) *Worker {
	return &Worker{gen: gen, log: log, timeout: timeout}
}

// Process runs the report pipeline for a job. The job ends completed or
// failed; a failure carries the same message a synchronous caller gets.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	job.SetStatus(StatusRunning, "generating")
	log.Info("report job started", "query", job.Query)

	r, err := w.gen.Generate(ctx, job.Query)
	if err != nil {
		log.Error("report job failed", "error", err)
		job.Fail("generating", report.FailureText(job.Query, err))
		return
	}
	job.Complete(r)
	log.Info("report job complete", "report_id", r.ID, "degraded", r.Degraded)
}
