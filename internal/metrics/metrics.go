package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// BuildDuration tracks model assembly time per scenario
	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "model_build_duration_seconds", Help: "Model assembly duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// SolveDuration tracks solver wall time by outcome
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "model_solve_duration_seconds", Help: "Solve duration in seconds by status.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}},
		[]string{"status"},
	)
	// ModelRows/ModelVars/ModelNonzeros describe the last assembled model
	ModelRows = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "model_rows", Help: "Constraint rows in the last assembled model."},
	)
	ModelVars = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "model_vars", Help: "Decision variables in the last assembled model."},
	)
	ModelNonzeros = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "model_nonzeros", Help: "Nonzero coefficients in the last assembled model."},
	)
	// CoeffRange exposes the absolute coefficient extremes; a wide spread
	// signals the conditioning problem the build log also reports
	CoeffRange = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "model_coeff_abs", Help: "Absolute coefficient range of the last assembled model."},
		[]string{"bound"},
	)
	// GeneratorRows counts rows emitted per constraint generator
	GeneratorRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "model_generator_rows", Help: "Rows emitted by each constraint generator."},
		[]string{"generator"},
	)
	// Runs counts completed runs by terminal status
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "runs_total", Help: "Completed runs by status."},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(BuildDuration)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(ModelRows)
		Registry.MustRegister(ModelVars)
		Registry.MustRegister(ModelNonzeros)
		Registry.MustRegister(CoeffRange)
		Registry.MustRegister(GeneratorRows)
		Registry.MustRegister(Runs)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
