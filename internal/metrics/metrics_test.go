package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

func TestObserverCounts(t *testing.T) {
	var o Observer
	st := proctor.State{ID: "s1"}

	startedBefore := testutil.ToFloat64(sessionsStarted)
	activeBefore := testutil.ToFloat64(sessionsActive)
	termBefore := testutil.ToFloat64(submissionsTotal.WithLabelValues("terminated"))
	errBefore := testutil.ToFloat64(submissionsTotal.WithLabelValues("error"))
	tabBefore := testutil.ToFloat64(warningsTotal.WithLabelValues(proctor.CodeTabFirstWarning))

	o.Started(st)
	assert.Equal(t, activeBefore+1, testutil.ToFloat64(sessionsActive))
	o.Effect(st, proctor.Effect{Kind: proctor.EffectNotice, Code: proctor.CodeTabFirstWarning})
	o.Effect(st, proctor.Effect{Kind: proctor.EffectNavigate, To: "/dashboard"})
	o.Submitted(proctor.Submission{Outcome: proctor.Outcome{Terminated: true, Risk: 80}}, nil)
	o.Submitted(proctor.Submission{}, errors.New("db down"))
	o.Ended(st)

	assert.Equal(t, startedBefore+1, testutil.ToFloat64(sessionsStarted))
	assert.Equal(t, activeBefore, testutil.ToFloat64(sessionsActive))
	assert.Equal(t, termBefore+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("terminated")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("error")))
	assert.Equal(t, tabBefore+1, testutil.ToFloat64(warningsTotal.WithLabelValues(proctor.CodeTabFirstWarning)))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/exams/{examID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", Handler().ServeHTTP)

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/exams/{examID}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/exams/abc", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/exams/{examID}", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "integriguard_http_requests_total")
}
