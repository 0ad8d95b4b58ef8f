// internal/prepare/runner.go
package prepare

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fluprep/internal/config"
	"fluprep/internal/fasta"
	"fluprep/internal/filters"
	"fluprep/internal/metrics"
	"fluprep/internal/names"
	"fluprep/internal/sequence"
)

// DefaultOutDir receives JSON output when Options.OutDir is empty.
const DefaultOutDir = "prepared"

// Options configure a Runner.
type Options struct {
	OutDir       string
	ReferenceDir string // base for relative reference paths
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
}

// Segment is the record set of one genome segment.
type Segment struct {
	Name      string
	Records   []*sequence.Record
	Reference *fasta.Record
	Extras    map[string]any
}

// Runner carries one Config through the prepare steps.
type Runner struct {
	ctx  context.Context
	cfg  *config.Config
	opts Options
	log  *zap.Logger

	segments []*Segment
	report   filters.Report
	colors   map[string]map[string]string
	latLongs map[string]map[string]LatLong
}

// New loads every segment of cfg. Segment files are read concurrently.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runner, error) {
	if opts.OutDir == "" {
		opts.OutDir = DefaultOutDir
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		ctx:      ctx,
		cfg:      cfg,
		opts:     opts,
		log:      log,
		segments: make([]*Segment, len(cfg.Segments)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range cfg.Segments {
		path := cfg.InputPaths[i]
		g.Go(func() error {
			recs, err := loadSegment(gctx, path, cfg.HeaderFields)
			if err != nil {
				return fmt.Errorf("segment %s: %w", seg, err)
			}
			r.segments[i] = &Segment{Name: seg, Records: recs, Extras: map[string]any{}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, s := range r.segments {
		r.log.Debug("loaded segment", zap.String("segment", s.Name), zap.Int("records", len(s.Records)))
	}
	return r, nil
}

func loadSegment(ctx context.Context, path string, schema sequence.HeaderSchema) ([]*sequence.Record, error) {
	seen := make(map[string]struct{})
	var out []*sequence.Record
	err := fasta.ScanPath(ctx, path, func(fr fasta.Record) error {
		rec := sequence.ParseHeader(fr.Header, schema)
		if _, dup := seen[rec.Name]; dup {
			return nil
		}
		seen[rec.Name] = struct{}{}
		rec.Seq = fr.Seq
		out = append(out, &rec)
		return nil
	})
	return out, err
}

// Segment returns the named segment, or nil.
func (r *Runner) Segment(name string) *Segment {
	for _, s := range r.segments {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Report returns the last filter report.
func (r *Runner) Report() filters.Report { return r.report }

func (r *Runner) labels() (string, string) {
	res := r.cfg.Resolution
	if res == "" {
		res = r.cfg.Window.Suffix
	}
	return r.cfg.Lineage, res
}

// LoadReferences reads the reference sequence of every segment.
func (r *Runner) LoadReferences() error {
	for _, s := range r.segments {
		ref, ok := r.cfg.References[s.Name]
		if !ok {
			return fmt.Errorf("no reference for segment %s", s.Name)
		}
		path := ref.Path
		if !filepath.IsAbs(path) && r.opts.ReferenceDir != "" {
			path = filepath.Join(r.opts.ReferenceDir, path)
		}
		recs, err := fasta.ReadAll(r.ctx, path)
		if err != nil {
			return fmt.Errorf("reference for %s: %w", s.Name, err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("reference for %s: %s has no records", s.Name, path)
		}
		s.Reference = &recs[0]
		r.log.Debug("loaded reference", zap.String("segment", s.Name), zap.String("path", path), zap.Int("length", len(recs[0].Seq)))
	}
	return nil
}

// chain returns the strains allowlist when one is configured, otherwise the
// configured filter chain.
func (r *Runner) chain() (filters.Chain, error) {
	if r.cfg.Strains == "" {
		return r.cfg.Filters, nil
	}
	allow, err := readAllowlist(r.cfg.Strains)
	if err != nil {
		return nil, err
	}
	r.log.Info("strains allowlist replaces filters", zap.String("path", r.cfg.Strains), zap.Int("strains", allow.Len()))
	return filters.Chain{filters.Func{
		Label: "Strains allowlist",
		Fn:    func(rec *sequence.Record) bool { return allow.Has(rec.Name) },
	}}, nil
}

// ApplyFilters runs the chain over every segment. The report covers the
// first segment; the others are logged.
func (r *Runner) ApplyFilters() error {
	c, err := r.chain()
	if err != nil {
		return err
	}
	lin, res := r.labels()
	for i, s := range r.segments {
		kept, rep := c.Apply(s.Records)
		s.Records = kept
		if i == 0 {
			r.report = rep
			r.opts.Metrics.ObserveFilters(lin, res, rep)
		}
		for _, o := range rep.Outcomes {
			r.log.Debug("filter", zap.String("segment", s.Name), zap.String("filter", o.Name), zap.Int("rejected", o.Rejected))
		}
		r.log.Info("filtered", zap.String("segment", s.Name), zap.Int("input", rep.Input), zap.Int("kept", rep.Kept))
	}
	return nil
}

// EnsureAllSegments drops strains missing from any segment.
func (r *Runner) EnsureAllSegments() error {
	if len(r.segments) < 2 {
		return nil
	}
	common := make(map[string]int)
	for _, s := range r.segments {
		for _, rec := range s.Records {
			common[rec.Name]++
		}
	}
	for _, s := range r.segments {
		kept := s.Records[:0]
		for _, rec := range s.Records {
			if common[rec.Name] == len(r.segments) {
				kept = append(kept, rec)
			}
		}
		if dropped := len(s.Records) - len(kept); dropped > 0 {
			r.log.Debug("dropped strains missing from other segments", zap.String("segment", s.Name), zap.Int("dropped", dropped))
		}
		s.Records = kept
	}
	lin, res := r.labels()
	r.opts.Metrics.ObserveStage(lin, res, "segments", len(r.segments[0].Records))
	return nil
}

// SubsampledNames resolves the subsampling directive over the first segment.
// With a strains allowlist every retained strain is kept.
func (r *Runner) SubsampledNames() ([]string, error) {
	first := r.segments[0]
	var out []string
	if r.cfg.Strains != "" {
		for _, rec := range first.Records {
			out = append(out, rec.Name)
		}
	} else {
		if r.cfg.Subsample == nil {
			return nil, fmt.Errorf("config has no subsampling directive")
		}
		out = r.cfg.Subsample.Select(first.Records)
	}
	lin, res := r.labels()
	r.opts.Metrics.ObserveStage(lin, res, "subsample", len(out))
	r.log.Info("subsampled", zap.String("segment", first.Name), zap.Int("candidates", len(first.Records)), zap.Int("leaves", len(out)))
	return out, nil
}

// SetLeaves records the retained taxa as the "leaves" extra of segment.
func (r *Runner) SetLeaves(segment string, leaves []string) {
	if s := r.Segment(segment); s != nil {
		s.Extras["leaves"] = leaves
	}
}

func readAllowlist(path string) (names.Set, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	var raw []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return names.NewSet(raw), nil
}
