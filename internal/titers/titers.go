// internal/titers/titers.go
package titers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"fluprep/internal/names"
)

// Key identifies one measurement series.
type Key struct {
	Test      string
	Reference string
	Serum     string
}

// Values maps a measurement key to its titers.
type Values map[Key][]float64

// CountFor returns the number of measurements with strain as the test virus.
func (v Values) CountFor(strain string) int {
	n := 0
	for k, xs := range v {
		if k.Test == strain {
			n += len(xs)
		}
	}
	return n
}

// Counts tallies measurements per test strain.
func (v Values) Counts() map[string]int {
	out := make(map[string]int)
	for k, xs := range v {
		out[k.Test] += len(xs)
	}
	return out
}

// LoadTSV parses the titer file at path. It returns the titer values and the
// sorted strain and source lists.
func LoadTSV(path string) (Values, []string, []string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Parse reads titer rows from r.
func Parse(r io.Reader) (Values, []string, []string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	values := make(Values)
	strains := map[string]struct{}{}
	sources := map[string]struct{}{}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, nil, fmt.Errorf("titers line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 5 {
			return nil, nil, nil, fmt.Errorf("titers line %d: want 5 columns, got %d", line, len(rec))
		}
		titer, err := parseTiter(rec[4])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("titers line %d: %w", line, err)
		}
		k := Key{
			Test:      names.Normalize(rec[0]),
			Reference: names.Normalize(rec[1]),
			Serum:     strings.TrimSpace(rec[2]),
		}
		values[k] = append(values[k], titer)
		strains[k.Test] = struct{}{}
		strains[k.Reference] = struct{}{}
		if src := strings.TrimSpace(rec[3]); src != "" {
			sources[src] = struct{}{}
		}
	}
	return values, sortedKeys(strains), sortedKeys(sources), nil
}

// parseTiter accepts plain numbers and bounds such as "<10" or ">1280".
func parseTiter(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "<>")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad titer %q", s)
	}
	return v, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
