// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"fluprep/internal/filters"
)

// Recorder owns a private registry so that tests and repeated runs in one
// process do not collide on the default registerer.
type Recorder struct {
	Registry *prometheus.Registry

	Rejected *prometheus.CounterVec
	Retained *prometheus.CounterVec
	Runs     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluprep",
			Name:      "records_rejected_total",
			Help:      "Records rejected per filter.",
		}, []string{"lineage", "resolution", "filter"}),
		Retained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluprep",
			Name:      "records_retained_total",
			Help:      "Records retained after each prepare stage.",
		}, []string{"lineage", "resolution", "stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluprep",
			Name:      "runs_total",
			Help:      "Prepare runs by outcome.",
		}, []string{"status"}),
	}
	r.Registry.MustRegister(r.Rejected, r.Retained, r.Runs)
	return r
}

// ObserveFilters records one filter report.
func (r *Recorder) ObserveFilters(lineage, resolution string, rep filters.Report) {
	if r == nil {
		return
	}
	for _, o := range rep.Outcomes {
		r.Rejected.WithLabelValues(lineage, resolution, o.Name).Add(float64(o.Rejected))
	}
	r.Retained.WithLabelValues(lineage, resolution, "filter").Add(float64(rep.Kept))
}

// ObserveStage records how many records survived a named stage.
func (r *Recorder) ObserveStage(lineage, resolution, stage string, n int) {
	if r == nil {
		return
	}
	r.Retained.WithLabelValues(lineage, resolution, stage).Add(float64(n))
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	r.Runs.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
