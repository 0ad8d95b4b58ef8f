// internal/sequence/record.go
package sequence

import (
	"sort"
	"strings"
	"time"

	"fluprep/internal/names"
	"fluprep/internal/window"
)

// UnknownValue is the fauna token for a missing attribute.
const UnknownValue = "?"

// Attribute names used by the filters.
const (
	FieldStrain  = "strain"
	FieldDate    = "date"
	FieldRegion  = "region"
	FieldCountry = "country"
)

// Record is one sequence with its parsed header attributes.
type Record struct {
	ID         string
	Name       string
	Seq        []byte
	Date       time.Time // zero when unknown or ambiguous
	Attributes map[string]string
}

// Attr returns an attribute and whether it is present and known.
func (r *Record) Attr(key string) (string, bool) {
	if r == nil || r.Attributes == nil {
		return "", false
	}
	v, ok := r.Attributes[key]
	if !ok || v == "" || v == UnknownValue {
		return "", false
	}
	return v, true
}

// HasDate reports whether the collection date is known.
func (r *Record) HasDate() bool { return r != nil && !r.Date.IsZero() }

// HeaderSchema maps pipe-delimited header positions to attribute names.
type HeaderSchema map[int]string

// FaunaHeader is the fauna FASTA header convention:
//
//	 0                     1   2         3          4      5     6       7       8          9                             10  11
//	>A/Galicia/RR9542/2012|flu|EPI376225|2012-02-23|europe|spain|galicia|galicia|unpassaged|instituto_de_salud_carlos_iii|47y|female
func FaunaHeader() HeaderSchema {
	return HeaderSchema{
		0: FieldStrain, 2: "isolate_id", 3: FieldDate,
		4: FieldRegion, 5: FieldCountry, 6: "division",
		8: "passage", 9: "lab", 10: "age",
		11: "gender",
	}
}

// Positions returns the schema positions in ascending order.
func (s HeaderSchema) Positions() []int {
	out := make([]int, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// ParseHeader builds a Record from a header line (without the leading '>').
// The strain field, or the first field if the schema has no strain, is
// normalized into Name and ID.
func ParseHeader(header string, schema HeaderSchema) Record {
	fields := strings.Split(strings.TrimSpace(header), "|")
	attrs := make(map[string]string, len(schema))
	for pos, key := range schema {
		if pos < len(fields) {
			attrs[key] = strings.TrimSpace(fields[pos])
		}
	}
	raw, ok := attrs[FieldStrain]
	if !ok {
		raw = fields[0]
	}
	name := names.Normalize(raw)
	rec := Record{ID: name, Name: name, Attributes: attrs}
	if d, ok := attrs[FieldDate]; ok {
		rec.Date = ParseDate(d)
	}
	return rec
}

// ParseDate parses fauna dates. "YYYY-MM-XX" is placed mid-month; anything
// less precise is unknown and returns the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if d, err := window.ParseDate(s); err == nil {
		return d
	}
	if strings.HasSuffix(s, "-XX") && !strings.Contains(s[:len(s)-3], "X") {
		if d, err := window.ParseDate(s[:len(s)-3] + "-15"); err == nil {
			return d
		}
	}
	return time.Time{}
}
