// internal/driver/driver_test.go
package driver

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"fluprep/internal/config"
	"fluprep/internal/failure"
	"fluprep/internal/lineage"
	"fluprep/internal/metrics"
	"fluprep/internal/window"
)

type fakeRunner struct {
	calls  *[]string
	failAt string
	leaves map[string][]string
}

func (f *fakeRunner) step(name string) error {
	*f.calls = append(*f.calls, name)
	if name == f.failAt {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeRunner) LoadReferences() error    { return f.step("LoadReferences") }
func (f *fakeRunner) ApplyFilters() error      { return f.step("ApplyFilters") }
func (f *fakeRunner) EnsureAllSegments() error { return f.step("EnsureAllSegments") }
func (f *fakeRunner) Colors() error            { return f.step("Colors") }
func (f *fakeRunner) LatLongs() error          { return f.step("LatLongs") }
func (f *fakeRunner) WriteJSON() error         { return f.step("WriteJSON") }

func (f *fakeRunner) SubsampledNames() ([]string, error) {
	if err := f.step("SubsampledNames"); err != nil {
		return nil, err
	}
	return []string{"A/Spain/1/2016"}, nil
}

func (f *fakeRunner) SetLeaves(segment string, leaves []string) {
	*f.calls = append(*f.calls, "SetLeaves:"+segment)
	f.leaves[segment] = leaves
}

type harness struct {
	calls   []string
	configs []*config.Config
	runners []*fakeRunner
	failAt  map[string]string // resolution -> step
}

func (h *harness) driver(t *testing.T, policy Policy) *Driver {
	t.Helper()
	reg, err := lineage.Default()
	if err != nil {
		t.Fatal(err)
	}
	return &Driver{
		Registry:    reg,
		Resolver:    window.Resolver{Now: func() time.Time { return time.Date(2018, 6, 15, 9, 0, 0, 0, time.UTC) }},
		Synthesizer: config.Synthesizer{NewRunID: func() string { return "rid" }},
		Policy:      policy,
		Metrics:     metrics.New(),
		NewRunner: func(_ context.Context, cfg *config.Config) (Runner, error) {
			h.configs = append(h.configs, cfg)
			r := &fakeRunner{calls: &h.calls, leaves: map[string][]string{}, failAt: h.failAt[cfg.Resolution]}
			h.runners = append(h.runners, r)
			return r, nil
		},
	}
}

func params() config.Params {
	return config.Params{
		Lineage:     "h3n2",
		Resolutions: []string{"2y", "3y", "6y"},
		Segments:    []string{"ha", "na"},
		Identifier:  "test",
		Sampling:    "even",
	}
}

func TestPlan(t *testing.T) {
	p := params()
	jobs, err := Plan(p)
	if err != nil || len(jobs) != 3 || jobs[1].Resolution != "3y" || jobs[1].Explicit {
		t.Fatalf("jobs=%+v err=%v", jobs, err)
	}
	p.TimeInterval = []string{"2016-01-01", "2017-01-01"}
	jobs, err = Plan(p)
	if err != nil || len(jobs) != 1 || !jobs[0].Explicit {
		t.Fatalf("explicit jobs=%+v err=%v", jobs, err)
	}
	p.TimeInterval, p.Resolutions = nil, nil
	if _, err := Plan(p); !failure.IsConfig(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestLifecycleOrder(t *testing.T) {
	h := &harness{}
	p := params()
	p.Resolutions = []string{"3y"}
	if _, err := h.driver(t, FailFast).Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"LoadReferences", "ApplyFilters", "EnsureAllSegments", "SubsampledNames",
		"SetLeaves:ha", "Colors", "LatLongs", "WriteJSON",
	}
	if !slices.Equal(h.calls, want) {
		t.Fatalf("calls=%v", h.calls)
	}
	if got := h.runners[0].leaves["ha"]; len(got) != 1 {
		t.Fatalf("leaves=%v", got)
	}
	cfg := h.configs[0]
	if cfg.Identifier != "3y_test" || cfg.FilePrefix != "flu_h3n2" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !cfg.Window.Lower.Equal(time.Date(2015, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("lower=%v", cfg.Window.Lower)
	}
}

func TestExplicitIntervalRunsOnce(t *testing.T) {
	h := &harness{}
	p := params()
	p.TimeInterval = []string{"2015-01-01", "2018-01-01"}
	res, err := h.driver(t, FailFast).Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.configs) != 1 || len(res) != 1 {
		t.Fatalf("configs=%d results=%d", len(h.configs), len(res))
	}
	cfg := h.configs[0]
	if cfg.Identifier != "2015-01-01_2018-01-01_test" || cfg.Resolution != "" {
		t.Fatalf("identifier=%q resolution=%q", cfg.Identifier, cfg.Resolution)
	}
	if cfg.Subsample.PerMonth != 12 {
		t.Fatalf("per month=%d", cfg.Subsample.PerMonth)
	}
}

func TestFailFast(t *testing.T) {
	h := &harness{failAt: map[string]string{"3y": "Colors"}}
	d := h.driver(t, FailFast)
	res, err := d.Run(context.Background(), params())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res) != 2 || len(h.configs) != 2 {
		t.Fatalf("6y must not run: results=%d", len(res))
	}
	if !failure.IsCollaborator(err) || failure.Stage(err) != "colors" || !strings.Contains(err.Error(), "3y") {
		t.Fatalf("err=%v stage=%q", err, failure.Stage(err))
	}
	if got := testutil.ToFloat64(d.Metrics.Runs.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed runs=%v", got)
	}
}

func TestContinue(t *testing.T) {
	h := &harness{failAt: map[string]string{"2y": "ApplyFilters", "6y": "WriteJSON"}}
	d := h.driver(t, Continue)
	res, err := d.Run(context.Background(), params())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res) != 3 || res[1].Err != nil {
		t.Fatalf("results=%+v", res)
	}
	msg := err.Error()
	if !strings.Contains(msg, "2y") || !strings.Contains(msg, "6y") || strings.Contains(msg, "3y:") {
		t.Fatalf("err=%v", err)
	}
	if got := testutil.ToFloat64(d.Metrics.Runs.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok runs=%v", got)
	}
}

func TestConfigErrorBeforeRunner(t *testing.T) {
	h := &harness{}
	p := params()
	p.Segments = []string{"ha", "xx"}
	_, err := h.driver(t, Continue).Run(context.Background(), p)
	if !failure.IsConfig(err) || len(h.configs) != 0 {
		t.Fatalf("err=%v configs=%d", err, len(h.configs))
	}
}

func TestUnknownLineage(t *testing.T) {
	h := &harness{}
	p := params()
	p.Lineage = "h5n1"
	if _, err := h.driver(t, FailFast).Run(context.Background(), p); !failure.IsReferenceData(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestCanceled(t *testing.T) {
	h := &harness{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.driver(t, Continue).Run(ctx, params())
	if !errors.Is(err, context.Canceled) || len(h.calls) != 0 {
		t.Fatalf("err=%v calls=%v", err, h.calls)
	}
}
