// internal/subsample/subsample.go
package subsample

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"fluprep/internal/sequence"
	"fluprep/internal/titers"
)

// Strategy names accepted besides a region name.
const (
	StrategyEven   = "even"
	StrategyRandom = "random"
)

// Params configure a Directive.
type Params struct {
	Strategy string
	// PerMonth overrides the per-month target when > 0.
	PerMonth int
	// YearsBack selects the default per-month target; 0 means an explicit
	// interval was used.
	YearsBack int
	Titers    titers.Values // nil when no titers were requested
	Regions   []string
}

// Directive decides which records survive subsampling.
type Directive struct {
	Strategy       string
	PerMonth       int
	PriorityRegion string
	regions        []string
	titerCounts    map[string]int
}

// DefaultPerMonth returns the per-month target for a resolution.
func DefaultPerMonth(yearsBack int) int {
	switch {
	case yearsBack <= 0:
		return 12
	case yearsBack <= 2:
		return 90
	case yearsBack <= 3:
		return 60
	case yearsBack <= 6:
		return 24
	default:
		return 12
	}
}

// New builds a Directive. Unknown strategies fall back to random sampling.
func New(p Params) (*Directive, error) {
	if p.PerMonth < 0 {
		return nil, fmt.Errorf("subsample: viruses per month must be >= 0, got %d", p.PerMonth)
	}
	d := &Directive{
		Strategy: p.Strategy,
		PerMonth: p.PerMonth,
		regions:  slices.Clone(p.Regions),
	}
	if d.PerMonth == 0 {
		d.PerMonth = DefaultPerMonth(p.YearsBack)
	}
	switch {
	case p.Strategy == StrategyEven:
		if len(d.regions) == 0 {
			return nil, fmt.Errorf("subsample: even sampling needs a region table")
		}
	case slices.Contains(d.regions, p.Strategy):
		d.PriorityRegion = p.Strategy
	default:
		d.Strategy = StrategyRandom
	}
	if p.Titers != nil {
		d.titerCounts = p.Titers.Counts()
	}
	return d, nil
}

type category struct {
	year   int
	month  int
	region string
}

func (d *Directive) category(r *sequence.Record) category {
	c := category{year: r.Date.Year(), month: int(r.Date.Month())}
	if d.Strategy == StrategyEven || d.PriorityRegion != "" {
		c.region, _ = r.Attr(sequence.FieldRegion)
	}
	return c
}

// threshold returns how many records a category may keep.
func (d *Directive) threshold(c category) int {
	switch {
	case d.PriorityRegion != "":
		if c.region == d.PriorityRegion {
			return max(1, d.PerMonth/2)
		}
		others := max(1, len(d.regions)-1)
		return max(1, (d.PerMonth-d.PerMonth/2)/others)
	case d.Strategy == StrategyEven:
		return max(1, d.PerMonth/len(d.regions))
	default:
		return d.PerMonth
	}
}

func (d *Directive) priority(name string) int {
	return d.titerCounts[name]
}

// Select returns the names of the records kept, sorted. Within a category,
// records with more titer measurements win; ties are broken by a hash of the
// name so the result is reproducible.
func (d *Directive) Select(records []*sequence.Record) []string {
	buckets := make(map[category][]*sequence.Record)
	for _, r := range records {
		c := d.category(r)
		buckets[c] = append(buckets[c], r)
	}
	var out []string
	for c, rs := range buckets {
		slices.SortFunc(rs, func(a, b *sequence.Record) int {
			if n := cmp.Compare(d.priority(b.Name), d.priority(a.Name)); n != 0 {
				return n
			}
			if n := cmp.Compare(xxhash.Sum64String(a.Name), xxhash.Sum64String(b.Name)); n != 0 {
				return n
			}
			return cmp.Compare(a.Name, b.Name)
		})
		for _, r := range rs[:min(len(rs), d.threshold(c))] {
			out = append(out, r.Name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
