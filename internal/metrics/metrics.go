package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the pipeline collectors. All methods are nil-safe so
// components can run without metrics in tests.
type Registry struct {
	reg               *prometheus.Registry
	Documents         *prometheus.CounterVec
	ReviewStubs       *prometheus.CounterVec
	ExtractionSeconds prometheus.Histogram
	OverageWarnings   prometheus.Counter
	CatalogRefreshes  *prometheus.CounterVec
	CatalogSize       prometheus.Gauge
	BatchTransitions  *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ro_documents_total",
		Help: "Documents run through extraction, by format.",
	}, []string{"format"})
	stubs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ro_review_stubs_total",
		Help: "Documents degraded to a review stub, by cause.",
	}, []string{"cause"})
	extraction := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ro_extraction_seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	})
	overage := prometheus.NewCounter(prometheus.CounterOpts{Name: "ro_overage_warnings_total"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ro_catalog_refreshes_total",
	}, []string{"result"})
	size := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ro_catalog_items"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ro_batch_transitions_total",
	}, []string{"status"})

	r.MustRegister(documents, stubs, extraction, overage, refreshes, size, transitions)
	return &Registry{
		reg:               r,
		Documents:         documents,
		ReviewStubs:       stubs,
		ExtractionSeconds: extraction,
		OverageWarnings:   overage,
		CatalogRefreshes:  refreshes,
		CatalogSize:       size,
		BatchTransitions:  transitions,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) Document(format string) {
	if r != nil {
		r.Documents.WithLabelValues(format).Inc()
	}
}

func (r *Registry) ReviewStub(cause string) {
	if r != nil {
		r.ReviewStubs.WithLabelValues(cause).Inc()
	}
}

func (r *Registry) ObserveExtraction(seconds float64) {
	if r != nil {
		r.ExtractionSeconds.Observe(seconds)
	}
}

func (r *Registry) Overages(n int) {
	if r != nil && n > 0 {
		r.OverageWarnings.Add(float64(n))
	}
}

func (r *Registry) CatalogRefresh(ok bool, items int) {
	if r == nil {
		return
	}
	if !ok {
		r.CatalogRefreshes.WithLabelValues("error").Inc()
		return
	}
	r.CatalogRefreshes.WithLabelValues("ok").Inc()
	r.CatalogSize.Set(float64(items))
}

func (r *Registry) Transition(status string) {
	if r != nil {
		r.BatchTransitions.WithLabelValues(status).Inc()
	}
}
