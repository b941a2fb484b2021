package checks

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/workspace-audit/pkg/engine"
)

// DefaultConcurrency bounds how many checks call the directory at once.
const DefaultConcurrency = 4

// Result is the outcome of one check.
type Result struct {
	CheckID  string
	Payload  *engine.RawFinding
	Err      error
	Duration time.Duration
}

// Runner runs checks against an Env.
type Runner struct {
	Env         *Env
	Concurrency int
	// Progress, when set, receives a line per finished check. Calls are serialized.
	Progress func(string)

	mu sync.Mutex
}

// Run executes checks and returns results in the order given. A failing check yields
// its error payload; only cancellation of ctx fails the run.
func (r *Runner) Run(ctx context.Context, checks []Check) ([]Result, error) {
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	results := make([]Result, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			payload, err := c.Run(gctx, r.Env)
			res := Result{CheckID: c.ID, Payload: payload, Err: err, Duration: time.Since(start)}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.Env.log().WithField("check", c.ID).Warnf("check failed: %v", err)
				res.Payload = c.ErrorPayload(r.Env, err)
			}
			results[i] = res
			r.progress(c.ID, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) progress(id string, err error) {
	if r.Progress == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.Progress("✗ " + id)
		return
	}
	r.Progress("✓ " + id)
}

// Collect gathers results into the findings mapping the report engine takes.
func Collect(results []Result) *engine.RawFindings {
	out := engine.NewRawFindings()
	for _, res := range results {
		out.Add(res.CheckID, res.Payload)
	}
	return out
}
