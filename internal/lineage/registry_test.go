// internal/lineage/registry_test.go
package lineage

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"fluprep/internal/failure"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	want := []string{"h1n1pdm", "h3n2", "vic", "yam"}
	if got := reg.Lineages(); !slices.Equal(got, want) {
		t.Fatalf("lineages=%v want %v", got, want)
	}
	again, _ := Default()
	if again != reg {
		t.Fatal("Default must return the shared registry")
	}
	tb, err := reg.Lookup("h3n2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !tb.HasSegment("ha") || tb.HasSegment("hx") {
		t.Fatalf("segments=%v", tb.Segments)
	}
	if len(tb.Outliers) == 0 || len(tb.ReferenceViruses) == 0 || len(tb.Regions) == 0 {
		t.Fatal("h3n2 tables should be populated")
	}
}

func TestLookupUnknownLineage(t *testing.T) {
	reg, _ := Default()
	_, err := reg.Lookup("h5n1")
	if !failure.IsReferenceData(err) {
		t.Fatalf("want ReferenceDataError, got %v", err)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	reg, _ := Default()
	a, _ := reg.Lookup("vic")
	a.Outliers[0] = "mutated"
	a.ReferenceMaps["ha"] = Reference{Path: "x"}
	a.Regions[0] = "mars"
	b, _ := reg.Lookup("vic")
	if b.Outliers[0] == "mutated" || b.ReferenceMaps["ha"].Path == "x" || b.Regions[0] == "mars" {
		t.Fatal("registry state leaked through Lookup")
	}
}

func TestReferencesFor(t *testing.T) {
	reg, _ := Default()
	tb, _ := reg.Lookup("h1n1pdm")
	refs, err := tb.ReferencesFor([]string{"ha", "na"})
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if len(refs) != 2 || refs["ha"].Path == "" {
		t.Fatalf("refs=%v", refs)
	}
	if _, err := tb.ReferencesFor([]string{"ha", "pb2"}); !failure.IsReferenceData(err) {
		t.Fatalf("missing segment should be a ReferenceDataError, got %v", err)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":       "regions: [europe]\n",
		"no segments": "lineages:\n  h3n2:\n    outliers: []\n",
		"unknown key": "lineages:\n  h3n2:\n    segments: [ha]\n    colour: red\n",
	} {
		if _, err := Parse(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ref.yaml")
	doc := `regions: [europe]
lineages:
  h3n2:
    segments: [ha]
    reference_viruses: [A/Perth/16/2009]
    reference_maps:
      ha: {path: ref.fasta}
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tb, err := reg.Lookup("h3n2")
	if err != nil || tb.ReferenceMaps["ha"].Path != "ref.fasta" || tb.Regions[0] != "europe" {
		t.Fatalf("tables=%+v err=%v", tb, err)
	}
}
