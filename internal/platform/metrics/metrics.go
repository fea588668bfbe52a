package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP and profile lifecycle metrics of the server.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProgressSaved    prometheus.Counter
	ProfilesComplete prometheus.Counter
	CompleteRejected prometheus.Counter
	DocumentsStored  *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ProgressSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_profile_progress_saved_total",
			Help: "Draft profiles saved",
		}),
		ProfilesComplete: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_profile_completed_total",
			Help: "Profiles accepted as complete",
		}),
		CompleteRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_profile_complete_rejected_total",
			Help: "Completion requests rejected as incomplete",
		}),
		DocumentsStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_documents_stored_total",
			Help: "Documents stored by type",
		}, []string{"type"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_rate_limited_total",
			Help: "Requests rejected by the rate limiter by scope",
		}, []string{"scope"}),
	}
}

func (m *Metrics) IncProgressSaved() {
	if m != nil {
		m.ProgressSaved.Inc()
	}
}

func (m *Metrics) IncCompleted() {
	if m != nil {
		m.ProfilesComplete.Inc()
	}
}

func (m *Metrics) IncCompleteRejected() {
	if m != nil {
		m.CompleteRejected.Inc()
	}
}

func (m *Metrics) IncDocumentStored(docType string) {
	if m != nil {
		m.DocumentsStored.WithLabelValues(docType).Inc()
	}
}

func (m *Metrics) IncRateLimited(scope string) {
	if m != nil {
		m.RateLimited.WithLabelValues(scope).Inc()
	}
}

// Instrument records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
