// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"fluprep/internal/cliutil"
	"fluprep/internal/config"
	"fluprep/internal/lineage"
	"fluprep/internal/version"
)

// Defaults used when the corresponding flag is not given.
var (
	DefaultLineage     = "h3n2"
	DefaultResolutions = []string{"3y", "6y", "12y"}
	DefaultSegments    = []string{"ha"}
	DefaultSampling    = "even"
)

// Options holds all CLI flags and arguments.
type Options struct {
	// Run selection
	Lineage      string
	Resolutions  []string
	Segments     []string
	TimeInterval []string

	// Inputs
	Sequences     []string
	Strains       string
	Titers        string
	DataDir       string
	ReferenceDir  string
	GeoFile       string
	ColorFile     string
	ReferenceData string

	// Subsampling
	Sampling        string
	VirusesPerMonth int

	// Output
	Identifier  string
	OutputDir   string
	MetricsFile string

	Verbose   bool
	KeepGoing bool
	Version   bool
}

// Params converts the parsed flags into run parameters.
func (o Options) Params() config.Params {
	return config.Params{
		Lineage:         o.Lineage,
		Resolutions:     slices.Clone(o.Resolutions),
		Segments:        slices.Clone(o.Segments),
		TimeInterval:    slices.Clone(o.TimeInterval),
		Sequences:       slices.Clone(o.Sequences),
		Titers:          o.Titers,
		Identifier:      o.Identifier,
		Strains:         o.Strains,
		Sampling:        o.Sampling,
		VirusesPerMonth: o.VirusesPerMonth,
		DataDir:         o.DataDir,
		GeoFile:         o.GeoFile,
		ColorFile:       o.ColorFile,
	}
}

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: prepare influenza sequences for phylogenetic builds

Version: %s

Usage of %s:
  %s [flags] [segment.fasta ...]

Positional FASTA files are appended to --sequences, one per segment.
Multi-value flags repeat or take commas: --time-interval 2015-01-01,2018-01-01

`, name, version.Version, name, name)
		fs.PrintDefaults()
	}
	return fs
}

// ParseArgs registers and parses all flags, returns an Options struct.
// Flags and positional FASTA paths may be interleaved.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool
	var resolutions, segments, interval, sequences listValue

	fs.StringVar(&opt.Lineage, "lineage", DefaultLineage, "lineage to prepare ["+DefaultLineage+"]")
	fs.StringVar(&opt.Lineage, "l", DefaultLineage, "lineage (shorthand)")
	fs.Var(&resolutions, "resolution", "resolution token(s), e.g. 3y (repeatable or comma-separated) ["+strings.Join(DefaultResolutions, ",")+"]")
	fs.Var(&resolutions, "r", "resolution (shorthand)")
	fs.Var(&segments, "segments", "genome segment(s) (repeatable or comma-separated) ["+strings.Join(DefaultSegments, ",")+"]")
	fs.Var(&segments, "s", "segments (shorthand)")
	fs.Var(&interval, "time-interval", "explicit interval as two YYYY-MM-DD dates; overrides --resolution")

	fs.Var(&sequences, "sequences", "FASTA file per segment, in segment order (repeatable, globs, or '-')")
	fs.StringVar(&opt.Strains, "strains", "", "file of strain names to keep; bypasses filters and subsampling")
	fs.StringVar(&opt.Titers, "titers", "", "tab-delimited titer file")
	fs.StringVar(&opt.DataDir, "data-dir", config.DefaultDataDir, "directory holding <lineage>_<segment>.fasta files")
	fs.StringVar(&opt.ReferenceDir, "reference-dir", "", "base directory for relative reference paths")
	fs.StringVar(&opt.GeoFile, "geo-file", config.DefaultGeoFile, "lat/long definition TSV")
	fs.StringVar(&opt.ColorFile, "color-file", config.DefaultColorFile, "color definition TSV")
	fs.StringVar(&opt.ReferenceData, "reference-data", "", "YAML file replacing the built-in lineage tables")

	fs.StringVar(&opt.Sampling, "sampling", DefaultSampling, "subsampling strategy: even | random | <region> ["+DefaultSampling+"]")
	fs.IntVar(&opt.VirusesPerMonth, "viruses-per-month", 0, "viruses per month (0 = resolution default) [0]")
	fs.IntVar(&opt.VirusesPerMonth, "v", 0, "viruses per month (shorthand)")

	fs.StringVar(&opt.Identifier, "identifier", "", "label appended to the output identifier")
	fs.StringVar(&opt.OutputDir, "output-dir", "prepared", "directory for JSON output [prepared]")
	fs.StringVar(&opt.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	fs.BoolVar(&opt.Verbose, "verbose", false, "debug logging [false]")
	fs.BoolVar(&opt.KeepGoing, "keep-going", false, "continue with remaining resolutions after a failure [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	flagArgs, posArgs := cliutil.SplitFlagsAndPositionals(fs, argv)
	if err := fs.Parse(flagArgs); err != nil {
		return opt, err
	}
	if help {
		fs.Usage()
		return opt, flag.ErrHelp
	}
	if opt.Version {
		return opt, nil
	}

	opt.Resolutions = resolutions.or(DefaultResolutions)
	opt.Segments = segments.or(DefaultSegments)
	opt.TimeInterval = interval
	seqs, err := cliutil.ExpandPositionals(append(sequences, posArgs...))
	if err != nil {
		return opt, err
	}
	opt.Sequences = seqs

	// Validation
	if opt.Lineage == "" {
		return opt, errors.New("--lineage must not be empty")
	}
	if len(opt.TimeInterval) != 0 && len(opt.TimeInterval) != 2 {
		return opt, fmt.Errorf("--time-interval needs exactly two dates, got %d", len(opt.TimeInterval))
	}
	if opt.VirusesPerMonth < 0 {
		return opt, errors.New("--viruses-per-month must be ≥ 0")
	}
	if len(opt.Sequences) > 0 && len(opt.Sequences) != len(opt.Segments) {
		return opt, fmt.Errorf("%d sequence files given for %d segments", len(opt.Sequences), len(opt.Segments))
	}
	if n := countStdin(opt.Sequences); n > 1 {
		return opt, fmt.Errorf("stdin ('-') given for %d segments; at most one segment may read stdin", n)
	}
	if dup := firstDuplicate(opt.Segments); dup != "" {
		return opt, fmt.Errorf("segment %q given twice", dup)
	}
	return opt, nil
}

// Validate rejects lineages and segments the reference tables do not know.
func Validate(o Options, reg *lineage.Registry) error {
	known := reg.Lineages()
	if !slices.Contains(known, o.Lineage) {
		return fmt.Errorf("unknown lineage %q (known: %s)", o.Lineage, strings.Join(known, ", "))
	}
	tb, err := reg.Lookup(o.Lineage)
	if err != nil {
		return err
	}
	for _, seg := range o.Segments {
		if !tb.HasSegment(seg) {
			return fmt.Errorf("unknown %s segment %q (known: %s)", o.Lineage, seg, strings.Join(tb.Segments, ", "))
		}
	}
	return nil
}

func countStdin(paths []string) int {
	n := 0
	for _, p := range paths {
		if p == "-" {
			n++
		}
	}
	return n
}

func firstDuplicate(xs []string) string {
	seen := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			return x
		}
		seen[x] = struct{}{}
	}
	return ""
}

// listValue is a repeatable flag whose values may also be comma-separated.
type listValue []string

func (l *listValue) String() string { return strings.Join(*l, ",") }

func (l *listValue) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func (l listValue) or(def []string) []string {
	if len(l) == 0 {
		return slices.Clone(def)
	}
	return l
}
