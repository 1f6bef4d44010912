package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveExtraction("OCR", nil, 2*time.Second)
	m.ObserveExtraction("", errors.New("boom"), time.Second)
	m.ObserveOCR(nil, time.Second)
	m.ImageFetchFailed()
	m.ObserveUpload("deal", errors.New("403"))
	m.ObserveRequest("/health", 200)
	m.ObserveRequest("", 404)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("OCR", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("none", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OCRInvocations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageFetchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("deal", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "4xx")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction("Text", nil, time.Second)
		m.ObserveOCR(nil, time.Second)
		m.ImageFetchFailed()
		m.ObserveUpload("image", nil)
		m.ObserveRequest("/", 200)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ImageFetchFailed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dealextractor_image_fetch_failures_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ImageFetchFailed()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ImageFetchFailures))
}
