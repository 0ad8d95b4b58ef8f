// internal/sequence/record_test.go
package sequence

import (
	"slices"
	"testing"
	"time"
)

const galicia = "A/Galicia/RR9542/2012|flu|EPI376225|2012-02-23|europe|spain|galicia|galicia|unpassaged|instituto_de_salud_carlos_iii|47y|female"

func TestParseHeaderFauna(t *testing.T) {
	r := ParseHeader(galicia, FaunaHeader())
	if r.Name != "A/Galicia/RR9542/2012" || r.ID != r.Name {
		t.Fatalf("name=%q id=%q", r.Name, r.ID)
	}
	if want := time.Date(2012, 2, 23, 0, 0, 0, 0, time.UTC); !r.Date.Equal(want) {
		t.Fatalf("date=%v", r.Date)
	}
	for key, want := range map[string]string{
		"region": "europe", "country": "spain", "division": "galicia",
		"passage": "unpassaged", "age": "47y", "gender": "female", "isolate_id": "EPI376225",
	} {
		if got := r.Attributes[key]; got != want {
			t.Errorf("%s=%q want %q", key, got, want)
		}
	}
	if _, ok := r.Attributes["location"]; ok {
		t.Error("position 7 is not part of the schema")
	}
}

func TestParseHeaderShortLine(t *testing.T) {
	r := ParseHeader("A/Hong Kong/1/2016|flu|EPI1|2016-XX-XX|?", FaunaHeader())
	if r.Name != "A/HongKong/1/2016" {
		t.Fatalf("name=%q", r.Name)
	}
	if r.HasDate() {
		t.Fatal("year-only date must be unknown")
	}
	if _, ok := r.Attr(FieldRegion); ok {
		t.Fatal("'?' region must read as unknown")
	}
	if _, ok := r.Attr(FieldCountry); ok {
		t.Fatal("missing country must read as unknown")
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2016-03-04": time.Date(2016, 3, 4, 0, 0, 0, 0, time.UTC),
		"2016-03-XX": time.Date(2016, 3, 15, 0, 0, 0, 0, time.UTC),
		"2016-XX-XX": {},
		"":           {},
		"garbage":    {},
	}
	for in, want := range cases {
		if got := ParseDate(in); !got.Equal(want) {
			t.Errorf("ParseDate(%q)=%v want %v", in, got, want)
		}
	}
}

func TestSchemaPositions(t *testing.T) {
	want := []int{0, 2, 3, 4, 5, 6, 8, 9, 10, 11}
	if got := FaunaHeader().Positions(); !slices.Equal(got, want) {
		t.Fatalf("positions=%v", got)
	}
}

func TestAttrNilSafe(t *testing.T) {
	var r *Record
	if _, ok := r.Attr(FieldRegion); ok || r.HasDate() {
		t.Fatal("nil record has no attributes")
	}
}
