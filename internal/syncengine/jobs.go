package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one of the fixed, statically-composed background tasks the sync
// engine runs — never a dynamically discovered plugin (see DESIGN.md's
// rationale for dropping the teacher's app-launcher subsystem).
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
	// Wake, if non-nil, lets an external signal (e.g. the file watcher)
	// trigger an out-of-cycle run without waiting for the next tick.
	Wake <-chan struct{}
}

// JobRunner runs a fixed set of named jobs concurrently, each on its own
// ticker, until its context is canceled.
type JobRunner struct {
	jobs []Job
	wg   sync.WaitGroup
}

// NewJobRunner builds a runner over the given jobs. It does not start them.
func NewJobRunner(jobs ...Job) *JobRunner {
	return &JobRunner{jobs: jobs}
}

// Start launches every job in its own goroutine and returns immediately.
// Call Wait (or block on ctx.Done()'s caller) to wait for shutdown.
func (r *JobRunner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.runJob(ctx, job)
	}
}

// Wait blocks until every job has returned (i.e. its context was canceled).
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

func (r *JobRunner) runJob(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	slog.Info("job started", "name", job.Name, "interval", job.Interval)
	job.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("job stopped", "name", job.Name)
			return
		case <-ticker.C:
			job.Run(ctx)
		case <-job.Wake:
			job.Run(ctx)
			ticker.Reset(job.Interval)
		}
	}
}
