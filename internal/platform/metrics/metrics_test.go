package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/documents/{type}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, p := range []string{"/documents/license", "/documents/fire"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/documents/{type}", "GET", "404")))
}

func TestCountersAreNilSafe(t *testing.T) {
	var m *Metrics
	m.IncCompleted()
	m.IncProgressSaved()
	m.IncCompleteRejected()
	m.IncDocumentStored("license")
	m.IncRateLimited("upload")

	m = New(prometheus.NewRegistry())
	m.IncCompleted()
	m.IncDocumentStored("license")
	m.IncRateLimited("upload")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProfilesComplete))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsStored.WithLabelValues("license")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("upload")))
}
