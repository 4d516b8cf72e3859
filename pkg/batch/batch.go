// Package batch runs independent queries concurrently on a bounded pool
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/fnuworsu/gqldb/pkg/query"
)

// Querier runs one query to completion
type Querier interface {
	Query(ctx context.Context, q query.Query) (*query.Result, error)
}

type Job struct {
	Name  string
	Query query.Query
}

type Outcome struct {
	Name     string
	Result   *query.Result
	Err      error
	Duration time.Duration
}

// Run executes every job on a pool of at most workers goroutines.
// Outcomes are returned in job order. A failing or panicking job only
// affects its own outcome.
func Run(ctx context.Context, engine Querier, jobs []Job, workers int, logger *slog.Logger) []Outcome {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome, len(jobs))
	for i, job := range jobs {
		outcomes[i].Name = job.Name
	}
	if len(jobs) == 0 {
		return outcomes
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		for i := range outcomes {
			outcomes[i].Err = fmt.Errorf("create worker pool: %w", err)
		}
		return outcomes
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			run(ctx, engine, jobs[i], &outcomes[i], logger)
		})
		if err != nil {
			wg.Done()
			outcomes[i].Err = fmt.Errorf("submit %s: %w", jobs[i].Name, err)
		}
	}
	wg.Wait()

	logger.Debug("batch complete", "jobs", len(jobs), "workers", workers)
	return outcomes
}

func run(ctx context.Context, engine Querier, job Job, out *Outcome, logger *slog.Logger) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			logger.Error("batch job panic", "job", job.Name, "panic", r)
			out.Result = nil
			out.Err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()

	out.Result, out.Err = engine.Query(ctx, job.Query)
	if out.Err != nil {
		logger.Debug("batch job failed", "job", job.Name, "error", out.Err)
	}
}

// Failed counts outcomes with an error
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
