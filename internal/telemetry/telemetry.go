// Package telemetry exposes the extractor's Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dealextractor"

// Metrics holds all extractor metrics
type Metrics struct {
	registry *prometheus.Registry

	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	OCRInvocations     *prometheus.CounterVec
	OCRDuration        prometheus.Histogram
	ImageFetchFailures prometheus.Counter
	UploadsTotal       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// New creates metrics registered on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.ExtractionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Extractions by text source and result",
	}, []string{"source", "result"})

	m.ExtractionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "End-to-end extraction time",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
	})

	m.OCRInvocations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ocr_invocations_total",
		Help:      "OCR runs by result",
	}, []string{"result"})

	m.OCRDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ocr_duration_seconds",
		Help:      "Time spent recognizing one image",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	m.ImageFetchFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_fetch_failures_total",
		Help:      "Image downloads that failed",
	})

	m.UploadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Content store writes by kind and result",
	}, []string{"kind", "result"})

	m.HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route and status class",
	}, []string{"route", "status"})

	return m
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExtraction records one finished extraction
func (m *Metrics) ObserveExtraction(source string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.ExtractionsTotal.WithLabelValues(source, result(err)).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

// ObserveOCR records one recognition
func (m *Metrics) ObserveOCR(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OCRInvocations.WithLabelValues(result(err)).Inc()
	m.OCRDuration.Observe(elapsed.Seconds())
}

// ImageFetchFailed counts a failed image download
func (m *Metrics) ImageFetchFailed() {
	if m == nil {
		return
	}
	m.ImageFetchFailures.Inc()
}

// ObserveUpload records one content store write
func (m *Metrics) ObserveUpload(kind string, err error) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(kind, result(err)).Inc()
}

// ObserveRequest records one API response
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
