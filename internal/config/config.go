// internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"fluprep/internal/failure"
	"fluprep/internal/filters"
	"fluprep/internal/lineage"
	"fluprep/internal/names"
	"fluprep/internal/sequence"
	"fluprep/internal/subsample"
	"fluprep/internal/titers"
	"fluprep/internal/window"
)

// Default locations, relative to the working directory of a run.
const (
	DefaultDataDir   = "../../fauna/data"
	DefaultGeoFile   = "../../fauna/source-data/geo_lat_long.tsv"
	DefaultColorFile = "colors.flu.tsv"
)

// Params is the immutable snapshot of command-line input.
type Params struct {
	Lineage         string
	Resolutions     []string
	Segments        []string
	TimeInterval    []string // empty, or exactly two YYYY-MM-DD dates
	Sequences       []string // explicit FASTA paths, paired with Segments
	Titers          string
	Identifier      string
	Strains         string
	Sampling        string
	VirusesPerMonth int

	DataDir   string
	GeoFile   string
	ColorFile string
}

// Config is everything one prepare run needs.
type Config struct {
	RunID      string
	Lineage    string
	Resolution string // empty for explicit intervals

	Dir        string
	FilePrefix string
	Segments   []string
	InputPaths []string // one per segment, same order
	Identifier string

	HeaderFields sequence.HeaderSchema
	Filters      filters.Chain
	Subsample    *subsample.Directive

	Colors      []string
	ColorDefs   []string
	LatLongs    []string
	LatLongDefs string
	References  map[string]lineage.Reference
	Regions     []string
	Window      window.Window
	Strains     string
	Titers      titers.Values // nil when no titer file was requested
}

// InputFor returns the FASTA path of seg.
func (c *Config) InputFor(seg string) (string, bool) {
	i := slices.Index(c.Segments, seg)
	if i < 0 {
		return "", false
	}
	return c.InputPaths[i], true
}

// Synthesizer builds Configs. Zero-valued hooks use the real collaborators.
type Synthesizer struct {
	LoadTiters   func(path string) (titers.Values, []string, []string, error)
	NewSubsample func(subsample.Params) (*subsample.Directive, error)
	NewRunID     func() string
}

// Build synthesizes one Config. It either returns a complete Config or an
// error; nothing is partially filled in.
func (s Synthesizer) Build(p Params, resolution string, w window.Window, tb lineage.Tables) (*Config, error) {
	if p.Lineage != tb.Lineage {
		return nil, failure.Configf("config", "parameters are for lineage %q but tables are for %q", p.Lineage, tb.Lineage)
	}
	if len(p.Segments) == 0 {
		return nil, failure.Configf("config", "no segments requested")
	}

	identifier := w.Suffix + "_" + p.Identifier

	references := names.NewSet(tb.ReferenceViruses)
	outliers := names.NewSet(tb.Outliers)

	inputs, err := resolveInputs(p, tb)
	if err != nil {
		return nil, err
	}

	refMaps, err := tb.ReferencesFor(p.Segments)
	if err != nil {
		return nil, err
	}

	var titerValues titers.Values
	if p.Titers != "" {
		load := s.LoadTiters
		if load == nil {
			load = titers.LoadTSV
		}
		v, _, _, err := load(p.Titers)
		if err != nil {
			return nil, failure.Collaborator("titers", err)
		}
		if v == nil {
			v = titers.Values{}
		}
		titerValues = v
	}

	yearsBack := w.YearsBack
	if w.Explicit {
		yearsBack = 0
	}
	newSub := s.NewSubsample
	if newSub == nil {
		newSub = subsample.New
	}
	directive, err := newSub(subsample.Params{
		Strategy:  p.Sampling,
		PerMonth:  p.VirusesPerMonth,
		YearsBack: yearsBack,
		Titers:    titerValues,
		Regions:   tb.Regions,
	})
	if err != nil {
		return nil, failure.Collaborator("subsample", err)
	}

	colorFile := p.ColorFile
	if colorFile == "" {
		colorFile = DefaultColorFile
	}
	geoFile := p.GeoFile
	if geoFile == "" {
		geoFile = DefaultGeoFile
	}
	runID := s.NewRunID
	if runID == nil {
		runID = uuid.NewString
	}
	if w.Explicit {
		resolution = ""
	}

	return &Config{
		RunID:        runID(),
		Lineage:      p.Lineage,
		Resolution:   resolution,
		Dir:          "flu",
		FilePrefix:   "flu_" + p.Lineage,
		Segments:     slices.Clone(p.Segments),
		InputPaths:   inputs,
		Identifier:   identifier,
		HeaderFields: sequence.FaunaHeader(),
		Filters:      filters.Standard(w, references, outliers),
		Subsample:    directive,
		Colors:       []string{sequence.FieldRegion},
		ColorDefs:    []string{colorFile},
		LatLongs:     []string{sequence.FieldCountry, sequence.FieldRegion},
		LatLongDefs:  geoFile,
		References:   refMaps,
		Regions:      slices.Clone(tb.Regions),
		Window:       w,
		Strains:      p.Strains,
		Titers:       titerValues,
	}, nil
}

func resolveInputs(p Params, tb lineage.Tables) ([]string, error) {
	for _, seg := range p.Segments {
		if !tb.HasSegment(seg) {
			return nil, failure.Configf("config", "segment %q is not a %s segment", seg, tb.Lineage)
		}
	}
	if len(p.Sequences) > 0 {
		if len(p.Sequences) != len(p.Segments) {
			return nil, failure.Configf("config", "%d sequence files given for %d segments", len(p.Sequences), len(p.Segments))
		}
		return slices.Clone(p.Sequences), nil
	}
	dir := p.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	out := make([]string, len(p.Segments))
	for i, seg := range p.Segments {
		out[i] = filepath.Join(dir, fmt.Sprintf("%s_%s.fasta", p.Lineage, seg))
	}
	return out, nil
}
