package warp

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one batch job.
type BatchResult struct {
	ID       string
	Job      Job
	Rows     int
	Duration time.Duration
	Err      error
}

// RunBatch runs independent jobs on at most workers goroutines (GOMAXPROCS
// when workers <= 0). A failing job does not stop the others. Jobs that have
// not started when ctx is cancelled report ctx.Err(). Results are in job
// order; jobs without an ID are given a random one.
func RunBatch(ctx context.Context, jobs []Job, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]BatchResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		results[i] = BatchResult{ID: job.ID, Job: job}

		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			start := time.Now()
			rows, err := NewDriver(job).Run()
			results[i].Duration = time.Since(start)
			results[i].Rows = len(rows)
			results[i].Err = err

			if err != nil {
				slog.Warn("Batch job failed", "job", job.ID, "error", err)
			} else {
				slog.Info("Batch job complete", "job", job.ID, "rows", len(rows), "duration", results[i].Duration)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Failed counts the results carrying an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
