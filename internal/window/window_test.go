// internal/window/window_test.go
package window

import (
	"math"
	"strings"
	"testing"
	"time"

	"fluprep/internal/failure"
)

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func date(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFromResolution(t *testing.T) {
	r := Resolver{Now: fixedClock("2018-06-15T21:30:00Z")}
	for _, tok := range []string{"1y", "2y", "3y", "6y", "12y", "y3"} {
		w, err := r.FromResolution(tok)
		if err != nil {
			t.Fatalf("%s: %v", tok, err)
		}
		n, _ := YearsBack(tok)
		if !w.Upper.Equal(date("2018-06-15")) {
			t.Fatalf("%s: upper=%v", tok, w.Upper)
		}
		wantDays := int(math.Round(float64(n) * 365.25))
		if got := int(w.Upper.Sub(w.Lower).Hours() / 24); got != wantDays {
			t.Fatalf("%s: span=%d days want %d", tok, got, wantDays)
		}
		if w.ReferenceCutoff.Year() != w.Lower.Year()-3 || w.ReferenceCutoff.Month() != time.January || w.ReferenceCutoff.Day() != 1 {
			t.Fatalf("%s: cutoff=%v lower=%v", tok, w.ReferenceCutoff, w.Lower)
		}
		if !w.ReferenceCutoff.Before(w.Lower) {
			t.Fatalf("%s: cutoff must precede lower", tok)
		}
		if w.Suffix != tok || w.YearsBack != n || w.Explicit {
			t.Fatalf("%s: %+v", tok, w)
		}
	}
}

func TestFromResolutionThreeYears(t *testing.T) {
	r := Resolver{Now: fixedClock("2018-06-15T08:00:00Z")}
	w, err := r.FromResolution("3y")
	if err != nil {
		t.Fatal(err)
	}
	// 3 * 365.25 = 1095.75 -> 1096 days
	if !w.Lower.Equal(date("2015-06-15")) {
		t.Fatalf("lower=%s", w.Lower.Format(DateLayout))
	}
	if !w.ReferenceCutoff.Equal(date("2012-01-01")) {
		t.Fatalf("cutoff=%s", w.ReferenceCutoff.Format(DateLayout))
	}
}

func TestFromResolutionRejectsTokensWithoutDigits(t *testing.T) {
	r := Resolver{Now: fixedClock("2018-06-15T08:00:00Z")}
	for _, tok := range []string{"", "y", "threey"} {
		_, err := r.FromResolution(tok)
		if !failure.IsConfig(err) {
			t.Fatalf("%q: want ConfigError, got %v", tok, err)
		}
	}
}

func TestFromIntervalSortsDescending(t *testing.T) {
	r := Resolver{}
	for _, in := range [][]string{
		{"2015-01-01", "2018-01-01"},
		{"2018-01-01", "2015-01-01"},
	} {
		w, err := r.FromInterval(in)
		if err != nil {
			t.Fatal(err)
		}
		if !w.Upper.Equal(date("2018-01-01")) || !w.Lower.Equal(date("2015-01-01")) {
			t.Fatalf("%v: %v..%v", in, w.Lower, w.Upper)
		}
		if !w.ReferenceCutoff.Equal(date("2012-01-01")) {
			t.Fatalf("cutoff=%v", w.ReferenceCutoff)
		}
		if w.Suffix != strings.Join(in, "_") || !w.Explicit || w.YearsBack != 0 {
			t.Fatalf("%+v", w)
		}
	}
}

func TestFromIntervalSingleDay(t *testing.T) {
	w, err := Resolver{}.FromInterval([]string{"2016-03-01", "2016-03-01"})
	if err != nil {
		t.Fatal(err)
	}
	if !w.Contains(date("2016-03-01")) || w.Contains(date("2016-03-02")) || w.Contains(date("2016-02-29")) {
		t.Fatal("single-day window should contain exactly that day")
	}
}

func TestFromIntervalErrors(t *testing.T) {
	for _, in := range [][]string{
		{"2015-01-01"},
		{"2015-01-01", "2016-01-01", "2017-01-01"},
		{"2015-13-01", "2016-01-01"},
		{"01/01/2015", "2016-01-01"},
	} {
		if _, err := (Resolver{}).FromInterval(in); !failure.IsConfig(err) {
			t.Fatalf("%v: want ConfigError, got %v", in, err)
		}
	}
}

func TestResolvePrefersInterval(t *testing.T) {
	r := Resolver{Now: fixedClock("2020-01-01T00:00:00Z")}
	w, err := r.Resolve("3y", []string{"2015-01-01", "2018-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	if !w.Explicit || w.Suffix != "2015-01-01_2018-01-01" {
		t.Fatalf("%+v", w)
	}
	w, err = r.Resolve("6y", nil)
	if err != nil || w.Explicit || w.YearsBack != 6 {
		t.Fatalf("%+v %v", w, err)
	}
}
