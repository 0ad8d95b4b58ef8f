// internal/prepare/write.go
package prepare

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"fluprep/internal/config"
	"fluprep/internal/filters"
	"fluprep/internal/jsonutil"
	"fluprep/internal/lineage"
	"fluprep/internal/window"
)

type strainOut struct {
	Seq        string            `json:"seq"`
	Date       string            `json:"date,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

type segmentOut struct {
	Reference string               `json:"reference,omitempty"`
	Sequences map[string]strainOut `json:"sequences"`
	Extras    map[string]any       `json:"extras"`
}

type titerOut struct {
	Test      string    `json:"test"`
	Reference string    `json:"reference"`
	Serum     string    `json:"serum"`
	Values    []float64 `json:"values"`
}

type infoOut struct {
	RunID           string                       `json:"run_id"`
	Lineage         string                       `json:"lineage"`
	Resolution      string                       `json:"resolution,omitempty"`
	Identifier      string                       `json:"identifier"`
	Segments        []string                     `json:"segments"`
	TimeInterval    [2]string                    `json:"time_interval"`
	ReferenceCutoff string                       `json:"reference_cutoff"`
	Regions         []string                     `json:"regions"`
	References      map[string]lineage.Reference `json:"references"`
	Strains         string                       `json:"strains,omitempty"`
	Titers          []titerOut                   `json:"titers,omitempty"`
}

type document struct {
	Info     infoOut                       `json:"info"`
	Filters  filters.Report                `json:"filter_report"`
	Segments map[string]segmentOut         `json:"segments"`
	Colors   map[string]map[string]string  `json:"colors"`
	LatLongs map[string]map[string]LatLong `json:"lat_longs"`
}

// OutputPath is where WriteJSON puts the artifact.
func (r *Runner) OutputPath() string { return OutputPath(r.opts.OutDir, r.cfg) }

// OutputPath returns {outDir}/{file prefix}_{identifier}.json for cfg.
func OutputPath(outDir string, cfg *config.Config) string {
	if outDir == "" {
		outDir = DefaultOutDir
	}
	return filepath.Join(outDir, cfg.FilePrefix+"_"+cfg.Identifier+".json")
}

func (r *Runner) document() document {
	c := r.cfg
	doc := document{
		Info: infoOut{
			RunID:           c.RunID,
			Lineage:         c.Lineage,
			Resolution:      c.Resolution,
			Identifier:      c.Identifier,
			Segments:        c.Segments,
			TimeInterval:    [2]string{c.Window.Upper.Format(window.DateLayout), c.Window.Lower.Format(window.DateLayout)},
			ReferenceCutoff: c.Window.ReferenceCutoff.Format(window.DateLayout),
			Regions:         c.Regions,
			References:      c.References,
			Strains:         c.Strains,
		},
		Filters:  r.report,
		Segments: make(map[string]segmentOut, len(r.segments)),
		Colors:   r.colors,
		LatLongs: r.latLongs,
	}
	for k, v := range c.Titers {
		doc.Info.Titers = append(doc.Info.Titers, titerOut{Test: k.Test, Reference: k.Reference, Serum: k.Serum, Values: v})
	}
	slices.SortFunc(doc.Info.Titers, func(a, b titerOut) int {
		return cmp.Or(cmp.Compare(a.Test, b.Test), cmp.Compare(a.Reference, b.Reference), cmp.Compare(a.Serum, b.Serum))
	})
	for _, s := range r.segments {
		so := segmentOut{Sequences: make(map[string]strainOut, len(s.Records)), Extras: s.Extras}
		if s.Reference != nil {
			so.Reference = string(s.Reference.Seq)
		}
		for _, rec := range s.Records {
			st := strainOut{Seq: string(rec.Seq), Attributes: rec.Attributes}
			if rec.HasDate() {
				st.Date = rec.Date.Format(window.DateLayout)
			}
			so.Sequences[rec.Name] = st
		}
		doc.Segments[s.Name] = so
	}
	return doc
}

// WriteJSON serializes the run. The file is written to a temporary name and
// renamed into place, so a failed write leaves no artifact behind.
func (r *Runner) WriteJSON() error {
	path := r.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fluprep-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := jsonutil.EncodePretty(tmp, r.document()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	r.log.Info("wrote", zap.String("path", path))
	return nil
}
