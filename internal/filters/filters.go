// internal/filters/filters.go
package filters

import (
	"fluprep/internal/names"
	"fluprep/internal/sequence"
	"fluprep/internal/window"
)

// Filter names, in chain order.
const (
	NameTimeInterval   = "Time Interval"
	NameSequenceLength = "Sequence Length"
	NameDroppedStrains = "Dropped Strains"
	NameBadGeo         = "Bad geo info"
)

// MinSequenceLength is the shortest sequence kept.
const MinSequenceLength = 900

// Predicate is one named boolean test over a record.
type Predicate interface {
	Name() string
	Keep(*sequence.Record) bool
}

// TimeInterval keeps records collected inside the window, plus reference
// viruses collected after the window's reference cutoff.
type TimeInterval struct {
	Window     window.Window
	References names.Set
}

func (TimeInterval) Name() string { return NameTimeInterval }

func (p TimeInterval) Keep(r *sequence.Record) bool {
	if !r.HasDate() {
		return false
	}
	if p.Window.Contains(r.Date) {
		return true
	}
	return p.References.Has(r.Name) && r.Date.After(p.Window.ReferenceCutoff)
}

// SequenceLength keeps sequences of at least Min residues.
type SequenceLength struct {
	Min int
}

func (SequenceLength) Name() string { return NameSequenceLength }

func (p SequenceLength) Keep(r *sequence.Record) bool {
	return r != nil && len(r.Seq) >= p.Min
}

// DroppedStrains rejects known outliers by record ID.
type DroppedStrains struct {
	Outliers names.Set
}

func (DroppedStrains) Name() string { return NameDroppedStrains }

func (p DroppedStrains) Keep(r *sequence.Record) bool {
	return r != nil && !p.Outliers.Has(r.ID)
}

// GeoInfo rejects records whose country or region is missing or "?".
// An empty field is present and passes.
type GeoInfo struct{}

func (GeoInfo) Name() string { return NameBadGeo }

func (GeoInfo) Keep(r *sequence.Record) bool {
	return r != nil && geoKnown(r.Attributes, sequence.FieldCountry) && geoKnown(r.Attributes, sequence.FieldRegion)
}

func geoKnown(attrs map[string]string, key string) bool {
	v, ok := attrs[key]
	return ok && v != sequence.UnknownValue
}

// Chain is an ordered list of predicates.
type Chain []Predicate

// Standard builds the four-predicate chain for a window and the normalized
// reference/outlier sets.
func Standard(w window.Window, references, outliers names.Set) Chain {
	return Chain{
		TimeInterval{Window: w, References: references},
		SequenceLength{Min: MinSequenceLength},
		DroppedStrains{Outliers: outliers},
		GeoInfo{},
	}
}

// Names lists the predicate names in order.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, p := range c {
		out[i] = p.Name()
	}
	return out
}

// Keep is the logical AND of every predicate.
func (c Chain) Keep(r *sequence.Record) bool {
	for _, p := range c {
		if !p.Keep(r) {
			return false
		}
	}
	return true
}

// Outcome is the rejection tally of one predicate.
type Outcome struct {
	Name     string `json:"name"`
	Rejected int    `json:"rejected"`
}

// Report summarizes one Apply call. Outcomes follow chain order.
type Report struct {
	Input    int       `json:"input"`
	Kept     int       `json:"kept"`
	Outcomes []Outcome `json:"filters"`
}

// Apply evaluates every predicate against every record and returns the kept
// records in input order. A record rejected by several predicates counts
// against each of them.
func (c Chain) Apply(records []*sequence.Record) ([]*sequence.Record, Report) {
	rep := Report{Input: len(records), Outcomes: make([]Outcome, len(c))}
	for i, p := range c {
		rep.Outcomes[i].Name = p.Name()
	}
	kept := make([]*sequence.Record, 0, len(records))
	for _, r := range records {
		ok := true
		for i, p := range c {
			if !p.Keep(r) {
				rep.Outcomes[i].Rejected++
				ok = false
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	rep.Kept = len(kept)
	return kept, rep
}

// Func adapts a function into a Predicate.
type Func struct {
	Label string
	Fn    func(*sequence.Record) bool
}

func (f Func) Name() string                 { return f.Label }
func (f Func) Keep(r *sequence.Record) bool { return f.Fn(r) }
