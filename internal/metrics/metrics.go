package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeReview    = "review"
	OutcomeFailed    = "failed"
)

// ExtractionMetrics records bill extraction runs. A nil *ExtractionMetrics
// is valid and records nothing.
type ExtractionMetrics struct {
	registry *prometheus.Registry

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	lineCount       prometheus.Histogram
	reviewReasons   *prometheus.CounterVec
	inFlight        prometheus.Gauge
	queueLag        prometheus.Histogram
}

func NewExtractionMetrics(service string) *ExtractionMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	extractTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "billx",
			Subsystem:   "extract",
			Name:        "bills_total",
			Help:        "Total extracted bills by text method and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"method", "outcome"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "billx",
			Subsystem:   "extract",
			Name:        "duration_seconds",
			Help:        "Bill extraction duration in seconds by text method and outcome.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: constLabels,
		},
		[]string{"method", "outcome"},
	)
	lineCount := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "billx",
			Subsystem:   "extract",
			Name:        "lines_per_bill",
			Help:        "Number of reconciled lines per extracted bill.",
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50, 100},
			ConstLabels: constLabels,
		},
	)
	reviewReasons := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "billx",
			Subsystem:   "extract",
			Name:        "review_reasons_total",
			Help:        "Review reasons raised on extracted bills.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "billx",
			Subsystem:   "worker",
			Name:        "bills_in_flight",
			Help:        "Number of bills being extracted.",
			ConstLabels: constLabels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "billx",
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between enqueue and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(extractTotal, extractDuration, lineCount, reviewReasons, inFlight, queueLag)

	return &ExtractionMetrics{
		registry:        registry,
		extractTotal:    extractTotal,
		extractDuration: extractDuration,
		lineCount:       lineCount,
		reviewReasons:   reviewReasons,
		inFlight:        inFlight,
		queueLag:        queueLag,
	}
}

func (m *ExtractionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, e.g. for pushing or tests.
func (m *ExtractionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ExtractionMetrics) StartBill() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// FinishBill records one run. method is the text acquisition method, empty
// when the document could not be read at all.
func (m *ExtractionMetrics) FinishBill(method, outcome string, duration time.Duration, lines int, reasons []string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	if method == "" {
		method = "none"
	}
	m.extractTotal.WithLabelValues(method, outcome).Inc()
	m.extractDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
	if outcome != OutcomeFailed {
		m.lineCount.Observe(float64(lines))
	}
	for _, r := range reasons {
		m.reviewReasons.WithLabelValues(r).Inc()
	}
}

func (m *ExtractionMetrics) ObserveQueueLag(lag time.Duration) {
	if m == nil || lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
