// Package telemetry exposes pipeline metrics through Prometheus.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

var (
	once sync.Once

	DispatchCounter  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "export_stages_dispatched_total", Help: "Stage dispatches by stage name"}, []string{"stage"})
	FailureCounter   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "export_stage_failures_total", Help: "Stage failures by stage and error kind"}, []string{"stage", "kind"})
	CompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{Name: "export_jobs_completed_total", Help: "Jobs that reached completed"})
	JobsCreated      = prometheus.NewCounter(prometheus.CounterOpts{Name: "export_jobs_created_total", Help: "Jobs accepted through the API"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "export_jobs_inflight", Help: "In-progress jobs selected on the last tick"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			DispatchCounter,
			FailureCounter,
			CompletedCounter,
			JobsCreated,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}

// Metrics adapts the Prometheus collectors to the pipeline's
// measurement interface.
type Metrics struct{}

func (Metrics) JobDispatched(stage string) {
	DispatchCounter.WithLabelValues(stage).Inc()
}

func (Metrics) StageFailed(stage string, kind job.ErrorKind) {
	FailureCounter.WithLabelValues(stage, string(kind)).Inc()
}

func (Metrics) JobCompleted() {
	CompletedCounter.Inc()
}

func (Metrics) SetInFlight(n int) {
	InFlightGauge.Set(float64(n))
}
