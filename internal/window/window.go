// internal/window/window.go
package window

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"fluprep/internal/failure"
)

const (
	// DateLayout is the ISO calendar date layout used on the command line and in FASTA headers.
	DateLayout = "2006-01-02"

	daysPerYear = 365.25

	// ReferenceLookbackYears is how far before the window's lower year the
	// reference cutoff sits.
	ReferenceLookbackYears = 3
)

var digitsRe = regexp.MustCompile(`\d+`)

// Window is the inclusive acceptance interval for collection dates.
type Window struct {
	Upper time.Time
	Lower time.Time
	// ReferenceCutoff admits canonical reference strains older than Lower.
	ReferenceCutoff time.Time
	// Suffix is the identifier fragment derived from the input.
	Suffix string
	// YearsBack is the resolution in years; 0 when an explicit interval was used.
	YearsBack int
	Explicit  bool
}

// Contains reports whether d lies in [Lower, Upper].
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Lower) && !d.After(w.Upper)
}

// Resolver resolves windows relative to Now.
type Resolver struct {
	Now func() time.Time
}

func (r Resolver) today() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return Civil(now())
}

// Civil truncates t to its calendar date at UTC midnight.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// YearsBack extracts the leading integer of a resolution token ("12y" -> 12).
func YearsBack(token string) (int, error) {
	m := digitsRe.FindString(token)
	if m == "" {
		return 0, failure.Configf("window", "resolution %q has no year count", token)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, &failure.ConfigError{Stage: "window", Msg: "resolution " + strconv.Quote(token), Err: err}
	}
	return n, nil
}

// FromResolution builds the window ending today and reaching back N×365.25 days.
func (r Resolver) FromResolution(token string) (Window, error) {
	n, err := YearsBack(token)
	if err != nil {
		return Window{}, err
	}
	upper := r.today()
	days := int(math.Round(float64(n) * daysPerYear))
	lower := upper.AddDate(0, 0, -days)
	return Window{
		Upper:           upper,
		Lower:           lower,
		ReferenceCutoff: cutoff(lower),
		Suffix:          token,
		YearsBack:       n,
	}, nil
}

// FromInterval builds the window spanning two explicit dates given in any order.
func (r Resolver) FromInterval(dates []string) (Window, error) {
	if len(dates) != 2 {
		return Window{}, failure.Configf("window", "time interval needs exactly two dates, got %d", len(dates))
	}
	parsed := make([]time.Time, 0, 2)
	for _, s := range dates {
		d, err := ParseDate(s)
		if err != nil {
			return Window{}, &failure.ConfigError{Stage: "window", Msg: "malformed date " + strconv.Quote(s), Err: err}
		}
		parsed = append(parsed, d)
	}
	slices.SortFunc(parsed, func(a, b time.Time) int { return b.Compare(a) })
	return Window{
		Upper:           parsed[0],
		Lower:           parsed[1],
		ReferenceCutoff: cutoff(parsed[1]),
		Suffix:          strings.Join(dates, "_"),
		Explicit:        true,
	}, nil
}

// Resolve prefers an explicit interval over the resolution token.
func (r Resolver) Resolve(resolution string, interval []string) (Window, error) {
	if len(interval) > 0 {
		return r.FromInterval(interval)
	}
	return r.FromResolution(resolution)
}

func cutoff(lower time.Time) time.Time {
	return time.Date(lower.Year()-ReferenceLookbackYears, time.January, 1, 0, 0, 0, 0, time.UTC)
}
