// Package metrics exposes Prometheus counters for proctoring sessions and
// HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "integriguard_sessions_started_total",
		Help: "Proctoring sessions started",
	})
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "integriguard_sessions_active",
		Help: "Proctoring sessions currently running",
	})
	signalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integriguard_signals_total",
		Help: "Client signals applied to sessions",
	}, []string{"kind"})
	warningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integriguard_warnings_total",
		Help: "Notices and dialogs raised by sessions",
	}, []string{"code"})
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integriguard_submissions_total",
		Help: "Finalised sessions by outcome",
	}, []string{"status"}) // completed, terminated, error
	riskAtSubmit = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "integriguard_risk_score_at_submit",
		Help:    "Risk score when a session was finalised",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integriguard_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "integriguard_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Observer records session lifecycle metrics.
type Observer struct {
	proctor.NopObserver
}

func (Observer) Started(proctor.State) {
	sessionsStarted.Inc()
	sessionsActive.Inc()
}

func (Observer) Signal(_ proctor.State, sig proctor.Signal) {
	signalsTotal.WithLabelValues(string(sig.Kind)).Inc()
}

func (Observer) Effect(_ proctor.State, e proctor.Effect) {
	if e.Code == "" {
		return
	}
	if e.Kind == proctor.EffectNotice || e.Kind == proctor.EffectDialog {
		warningsTotal.WithLabelValues(e.Code).Inc()
	}
}

func (Observer) Submitted(sub proctor.Submission, err error) {
	status := "completed"
	switch {
	case err != nil:
		status = "error"
	case sub.Outcome.Terminated:
		status = "terminated"
	}
	submissionsTotal.WithLabelValues(status).Inc()
	riskAtSubmit.Observe(float64(sub.Outcome.Risk))
}

func (Observer) Ended(proctor.State) { sessionsActive.Dec() }

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
