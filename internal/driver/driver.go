// internal/driver/driver.go
package driver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fluprep/internal/config"
	"fluprep/internal/failure"
	"fluprep/internal/lineage"
	"fluprep/internal/metrics"
	"fluprep/internal/window"
)

// Runner is the prepare lifecycle the driver walks through.
type Runner interface {
	LoadReferences() error
	ApplyFilters() error
	EnsureAllSegments() error
	SubsampledNames() ([]string, error)
	SetLeaves(segment string, leaves []string)
	Colors() error
	LatLongs() error
	WriteJSON() error
}

// RunnerFactory builds a Runner for one configuration.
type RunnerFactory func(ctx context.Context, cfg *config.Config) (Runner, error)

// Policy decides what happens after a job fails.
type Policy int

const (
	// FailFast stops at the first failed job.
	FailFast Policy = iota
	// Continue runs the remaining jobs and reports every failure.
	Continue
)

// Job is one planned run.
type Job struct {
	Resolution string // resolution token; informational for explicit jobs
	Explicit   bool
}

// Label names the job in logs and errors.
func (j Job) Label() string {
	if j.Explicit {
		return "explicit interval"
	}
	return j.Resolution
}

// Plan lists the jobs for p. An explicit interval yields exactly one job,
// whatever the number of resolutions.
func Plan(p config.Params) ([]Job, error) {
	if len(p.TimeInterval) > 0 {
		res := ""
		if len(p.Resolutions) > 0 {
			res = p.Resolutions[0]
		}
		return []Job{{Resolution: res, Explicit: true}}, nil
	}
	if len(p.Resolutions) == 0 {
		return nil, failure.Configf("config", "no resolutions requested")
	}
	jobs := make([]Job, len(p.Resolutions))
	for i, r := range p.Resolutions {
		jobs[i] = Job{Resolution: r}
	}
	return jobs, nil
}

// Driver runs planned jobs sequentially.
type Driver struct {
	Registry    *lineage.Registry
	Resolver    window.Resolver
	Synthesizer config.Synthesizer
	NewRunner   RunnerFactory
	Policy      Policy
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
}

// Result describes one finished job.
type Result struct {
	Job    Job
	Config *config.Config
	Err    error
}

// Run executes every job of p. Tables are looked up once, before any job.
func (d *Driver) Run(ctx context.Context, p config.Params) ([]Result, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	jobs, err := Plan(p)
	if err != nil {
		return nil, err
	}
	tb, err := d.Registry.Lookup(p.Lineage)
	if err != nil {
		return nil, err
	}

	var (
		results []Result
		errs    []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		log.Info("preparing",
			zap.String("lineage", p.Lineage),
			zap.Strings("segments", p.Segments),
			zap.String("resolution", job.Label()))
		cfg, err := d.runJob(ctx, log, p, job, tb)
		d.Metrics.ObserveRun(err)
		results = append(results, Result{Job: job, Config: cfg, Err: err})
		if err != nil {
			err = fmt.Errorf("%s: %w", job.Label(), err)
			log.Error("run failed", zap.String("resolution", job.Label()), zap.String("stage", failure.Stage(err)), zap.Error(err))
			errs = append(errs, err)
			if d.Policy == FailFast {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

type step struct {
	name string
	fn   func() error
}

func (d *Driver) runJob(ctx context.Context, log *zap.Logger, p config.Params, job Job, tb lineage.Tables) (*config.Config, error) {
	w, err := d.Resolver.Resolve(job.Resolution, p.TimeInterval)
	if err != nil {
		return nil, err
	}
	cfg, err := d.Synthesizer.Build(p, job.Resolution, w, tb)
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("run_id", cfg.RunID),
		zap.String("lineage", cfg.Lineage),
		zap.String("resolution", job.Label()),
		zap.String("identifier", cfg.Identifier))
	log.Debug("window",
		zap.Time("upper", w.Upper), zap.Time("lower", w.Lower),
		zap.Time("reference_cutoff", w.ReferenceCutoff))
	log.Debug("config",
		zap.Strings("inputs", cfg.InputPaths),
		zap.Strings("filters", cfg.Filters.Names()),
		zap.Bool("titers", cfg.Titers != nil))

	r, err := d.NewRunner(ctx, cfg)
	if err != nil {
		return cfg, failure.Collaborator("runner", err)
	}
	steps := []step{
		{"load references", r.LoadReferences},
		{"apply filters", r.ApplyFilters},
		{"ensure all segments", r.EnsureAllSegments},
		{"subsample", func() error {
			leaves, err := r.SubsampledNames()
			if err != nil {
				return err
			}
			r.SetLeaves(cfg.Segments[0], leaves)
			return nil
		}},
		{"colors", r.Colors},
		{"lat/longs", r.LatLongs},
		{"write json", r.WriteJSON},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return cfg, err
		}
		log.Debug("step", zap.String("step", s.name))
		if err := s.fn(); err != nil {
			return cfg, failure.Collaborator(s.name, err)
		}
	}
	return cfg, nil
}
