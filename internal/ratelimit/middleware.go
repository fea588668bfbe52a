package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/httputil"
)

// Limiter admits requests against a primary store. While the primary keeps
// failing, a circuit breaker routes checks to an in-memory fallback and
// responses carry X-RateLimit-Status: degraded.
type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Limiter)

func WithFallback(s Store) Option {
	return func(l *Limiter) {
		l.fallback = s
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a limiter allowing limit requests per key within window.
func New(primary Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		breaker: circuit.New("ratelimit", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		limit:   limit,
		window:  window,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits one request for key. degraded reports that the fallback
// store answered.
func (l *Limiter) Check(ctx context.Context, key string) (res Result, degraded bool, err error) {
	if l.breaker.IsOpen() && l.fallback != nil {
		res, err = l.fallback.AllowN(ctx, key, 1, l.limit, l.window)
		if _, checkErr := l.primary.AllowN(ctx, "health:"+key, 0, l.limit, l.window); checkErr != nil {
			l.breaker.RecordFailure()
		} else if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.logger.InfoContext(ctx, "rate limit store recovered")
		}
		return res, true, err
	}

	res, err = l.primary.AllowN(ctx, key, 1, l.limit, l.window)
	if err == nil {
		l.breaker.RecordSuccess()
		return res, false, nil
	}
	if _, change := l.breaker.RecordFailure(); change.Opened {
		l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
	}
	if l.fallback == nil {
		return Result{}, false, err
	}
	res, err = l.fallback.AllowN(ctx, key, 1, l.limit, l.window)
	return res, true, err
}

// PerOrganization limits requests by the authenticated organization. It must
// run after the auth middleware. Store errors let the request through.
func (l *Limiter) PerOrganization(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			orgID := middleware.GetOrgID(ctx)
			if orgID == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, degraded, err := l.Check(ctx, scope+":"+orgID)
			if err != nil {
				l.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"org_id", orgID,
					"request_id", middleware.GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, res)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if !res.Allowed {
				l.metrics.IncRateLimited(scope)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter(res, time.Now())))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// retryAfter rounds the wait up to whole seconds, at least one.
func retryAfter(res Result, now time.Time) int {
	secs := int((res.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	return max(secs, 1)
}
