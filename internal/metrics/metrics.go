// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leaf_dataset_loads_total",
		Help: "Dataset load attempts by dataset and status",
	}, []string{"dataset", "status"})
	DatasetLoadSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leaf_dataset_load_seconds",
		Help:    "Dataset load duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"dataset"})
	ScoringRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leaf_scoring_requests_total",
		Help: "Feasibility evaluations by unit level",
	}, []string{"level"})
	ScoringDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leaf_scoring_duration_seconds",
		Help:    "Feasibility evaluation duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"level"})
	ScoredUnits = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaf_scored_units",
		Help:    "Units scored per evaluation",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leaf_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(DatasetLoadsTotal)
	prometheus.MustRegister(DatasetLoadSeconds)
	prometheus.MustRegister(ScoringRequestsTotal)
	prometheus.MustRegister(ScoringDurationSeconds)
	prometheus.MustRegister(ScoredUnits)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// ObserveLoad records one dataset load.
func ObserveLoad(dataset string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DatasetLoadsTotal.WithLabelValues(dataset, status).Inc()
	DatasetLoadSeconds.WithLabelValues(dataset).Observe(elapsed.Seconds())
}

// ObserveScoring records one feasibility evaluation.
func ObserveScoring(level string, units int, elapsed time.Duration) {
	ScoringRequestsTotal.WithLabelValues(level).Inc()
	ScoringDurationSeconds.WithLabelValues(level).Observe(elapsed.Seconds())
	ScoredUnits.Observe(float64(units))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
