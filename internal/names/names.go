// internal/names/names.go
package names

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var dropper = strings.NewReplacer(
	" ", "",
	"\t", "",
	"'", "",
	"(", "",
	")", "",
	".", "",
	",", "",
)

// Normalize returns the canonical form of a strain name.
//
//	"A/Hong Kong/4801/2014" -> "A/HongKong/4801/2014"
//	"A/Cote d'Ivoire//1(2015)" -> "A/CotedIvoire/12015"
//
// Normalize is idempotent.
func Normalize(name string) string {
	s := norm.NFC.String(name)
	s = collapseSlashes(dropper.Replace(s))
	// removals can join a base letter to a combining mark
	return strings.TrimSpace(norm.NFC.String(s))
}

func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}

// Set is an immutable set of normalized names.
type Set map[string]struct{}

// NewSet normalizes every entry once.
func NewSet(in []string) Set {
	s := make(Set, len(in))
	for _, n := range in {
		if c := Normalize(n); c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Has reports membership of an already-normalized name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Len() int { return len(s) }
