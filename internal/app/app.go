// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"fluprep/internal/cli"
	"fluprep/internal/config"
	"fluprep/internal/driver"
	"fluprep/internal/failure"
	"fluprep/internal/lineage"
	"fluprep/internal/logging"
	"fluprep/internal/metrics"
	"fluprep/internal/prepare"
	"fluprep/internal/version"
	"fluprep/internal/writers"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitFailure  = 3
	ExitCanceled = 130
)

const name = "flu-prepare"

// flush writes buffered stdout; a closed pipe downstream is not an error.
func flush(outw *bufio.Writer, stderr io.Writer, code int) int {
	if err := outw.Flush(); writers.IsBrokenPipe(err) {
		return code
	} else if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return ExitFailure
	}
	return code
}

// RunContext parses argv, runs every planned prepare job and prints the path
// of each written JSON file on stdout. Logs go to stderr.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)

	fs := cli.NewFlagSet(name)
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		argv = []string{"-h"}
	}
	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		fs.SetOutput(outw)
		if errors.Is(err, flag.ErrHelp) {
			fs.Usage()
			return flush(outw, stderr, ExitOK)
		}
		_, _ = fmt.Fprintln(stderr, err)
		fs.Usage()
		return flush(outw, stderr, ExitUsage)
	}
	if opts.Version {
		_, _ = fmt.Fprintf(outw, "%s version %s\n", name, version.Version)
		return flush(outw, stderr, ExitOK)
	}

	log := logging.New(stderr, opts.Verbose)
	defer func() { _ = log.Sync() }()

	reg, err := loadRegistry(opts.ReferenceData)
	if err != nil {
		log.Error("reference data", zap.Error(err))
		return ExitUsage
	}
	if err := cli.Validate(opts, reg); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return ExitUsage
	}

	rec := metrics.New()
	policy := driver.FailFast
	if opts.KeepGoing {
		policy = driver.Continue
	}
	d := &driver.Driver{
		Registry:    reg,
		Synthesizer: config.Synthesizer{},
		Policy:      policy,
		Logger:      log,
		Metrics:     rec,
		NewRunner: func(ctx context.Context, cfg *config.Config) (driver.Runner, error) {
			return prepare.New(ctx, cfg, prepare.Options{
				OutDir:       opts.OutputDir,
				ReferenceDir: opts.ReferenceDir,
				Logger:       log.With(zap.String("run_id", cfg.RunID)),
				Metrics:      rec,
			})
		},
	}

	results, runErr := d.Run(parent, opts.Params())
	for _, r := range results {
		if r.Err == nil && r.Config != nil {
			_, _ = fmt.Fprintln(outw, prepare.OutputPath(opts.OutputDir, r.Config))
		}
	}
	code := exitCode(runErr)

	if opts.MetricsFile != "" {
		if err := rec.WriteTextfile(opts.MetricsFile); err != nil {
			log.Error("metrics", zap.String("path", opts.MetricsFile), zap.Error(err))
			code = max(code, ExitFailure)
		}
	}
	if runErr != nil {
		log.Error("prepare failed", zap.Int("jobs", len(results)), zap.Error(runErr))
	}
	return flush(outw, stderr, code)
}

// Run is RunContext with a background context.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

func loadRegistry(path string) (*lineage.Registry, error) {
	if path == "" {
		return lineage.Default()
	}
	return lineage.LoadFile(path)
}

// exitCode maps a run error to the process exit code. Collaborator failures
// outrank configuration errors when a continued run saw both.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCanceled
	case failure.IsCollaborator(err):
		return ExitFailure
	case failure.IsConfig(err), failure.IsReferenceData(err):
		return ExitUsage
	default:
		return ExitFailure
	}
}
