// Package apply executes a plan on the local host. Steps run in order; the first step that fails stops the run.
package apply

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/miekg/hostprep/oscmd"
	"github.com/miekg/hostprep/ospkg"
	"github.com/miekg/hostprep/plan"
	"go.science.ru.nl/log"
)

// Executor applies plans.
type Executor struct {
	Root   string       // All paths in a plan are taken relative to Root, empty means "/".
	Runner oscmd.Runner // Runs the external commands.
	DryRun bool         // Only log what would be done.
}

// Result is the outcome of a single step.
type Result struct {
	Kind     string
	Step     string
	Changed  bool // False when the step found nothing to do.
	Skipped  bool // True in dry run mode.
	Duration time.Duration
	Err      error
}

// Report holds the results of all steps that were attempted.
type Report struct {
	Results []Result
}

// Changed returns the number of steps that changed something on the host.
func (r *Report) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Changed {
			n++
		}
	}
	return n
}

// Apply runs all steps of p. The returned report is never nil, the error is the first failure encountered.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan) (*Report, error) {
	r := &Report{}
	for i, s := range p.Steps {
		res := Result{Kind: s.Kind(), Step: s.String()}
		if e.DryRun {
			log.Infof("Dry run, would %s", s)
			res.Skipped = true
			r.Results = append(r.Results, res)
			continue
		}

		log.Infof("Step %d/%d: %s", i+1, len(p.Steps), s)
		start := time.Now()
		res.Changed, res.Err = e.apply(ctx, s)
		res.Duration = time.Since(start)
		metricStepDuration.WithLabelValues(res.Kind).Observe(res.Duration.Seconds())
		r.Results = append(r.Results, res)

		if res.Err != nil {
			metricStepFail.WithLabelValues(res.Kind).Inc()
			return r, fmt.Errorf("step %d %q: %w", i+1, s.String(), res.Err)
		}
	}
	return r, nil
}

func (e *Executor) apply(ctx context.Context, s plan.Step) (bool, error) {
	switch s := s.(type) {
	case *plan.EnsureRepo:
		return e.ensureRepo(ctx, s)
	case *plan.WriteRepoFile:
		return e.writeRepoFile(s)
	case *plan.Install:
		return true, ospkg.New(s.Manager, e.Runner).Install(ctx, s.Transaction)
	case *plan.EnsureLines:
		return e.ensureLines(s)
	case *plan.Service:
		return e.service(ctx, s)
	case *plan.PinPip:
		return e.pinPip(ctx, s)
	}
	return false, fmt.Errorf("unknown step %T", s)
}

// path returns p relative to the executor's root.
func (e *Executor) path(p string) string {
	if e.Root == "" {
		return p
	}
	return filepath.Join(e.Root, p)
}
