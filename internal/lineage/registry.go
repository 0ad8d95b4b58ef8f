// internal/lineage/registry.go
package lineage

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"fluprep/internal/failure"
)

//go:embed data/flu.yaml
var embedded []byte

// Reference describes the reference alignment of one segment.
type Reference struct {
	Path    string   `yaml:"path" json:"path"`
	Genes   []string `yaml:"genes" json:"genes"`
	Include int      `yaml:"include" json:"include"`
}

// Tables are the reference tables of one lineage.
type Tables struct {
	Lineage          string
	Segments         []string
	Outliers         []string
	ReferenceViruses []string
	ReferenceMaps    map[string]Reference
	Regions          []string
}

type lineageDoc struct {
	Segments         []string             `yaml:"segments"`
	Outliers         []string             `yaml:"outliers"`
	ReferenceViruses []string             `yaml:"reference_viruses"`
	ReferenceMaps    map[string]Reference `yaml:"reference_maps"`
}

type document struct {
	Regions  []string              `yaml:"regions"`
	Lineages map[string]lineageDoc `yaml:"lineages"`
}

// Registry is an immutable lookup service keyed by lineage.
type Registry struct {
	regions  []string
	lineages map[string]lineageDoc
}

// Parse reads a YAML reference document.
func Parse(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse reference tables: %w", err)
	}
	if len(doc.Lineages) == 0 {
		return nil, fmt.Errorf("parse reference tables: no lineages defined")
	}
	for name, l := range doc.Lineages {
		if len(l.Segments) == 0 {
			return nil, fmt.Errorf("parse reference tables: lineage %q lists no segments", name)
		}
	}
	return &Registry{regions: doc.Regions, lineages: doc.Lineages}, nil
}

// LoadFile parses the reference document at path.
func LoadFile(path string) (*Registry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded tables.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(bytes.NewReader(embedded))
	})
	return defaultReg, defaultErr
}

// Lineages returns the known lineage names, sorted.
func (r *Registry) Lineages() []string {
	return slices.Sorted(maps.Keys(r.lineages))
}

// Regions returns a copy of the region table.
func (r *Registry) Regions() []string { return slices.Clone(r.regions) }

// Lookup returns a copy of the tables for lineage.
func (r *Registry) Lookup(lineage string) (Tables, error) {
	l, ok := r.lineages[lineage]
	if !ok {
		return Tables{}, &failure.ReferenceDataError{Lineage: lineage}
	}
	refs := make(map[string]Reference, len(l.ReferenceMaps))
	for seg, ref := range l.ReferenceMaps {
		ref.Genes = slices.Clone(ref.Genes)
		refs[seg] = ref
	}
	return Tables{
		Lineage:          lineage,
		Segments:         slices.Clone(l.Segments),
		Outliers:         slices.Clone(l.Outliers),
		ReferenceViruses: slices.Clone(l.ReferenceViruses),
		ReferenceMaps:    refs,
		Regions:          slices.Clone(r.regions),
	}, nil
}

// HasSegment reports whether seg is a known segment of the lineage.
func (t Tables) HasSegment(seg string) bool { return slices.Contains(t.Segments, seg) }

// ReferencesFor restricts the reference map to segments.
func (t Tables) ReferencesFor(segments []string) (map[string]Reference, error) {
	out := make(map[string]Reference, len(segments))
	for _, seg := range segments {
		ref, ok := t.ReferenceMaps[seg]
		if !ok {
			return nil, &failure.ReferenceDataError{Lineage: t.Lineage, Key: seg}
		}
		out[seg] = ref
	}
	return out, nil
}
