package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/topic"
)

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	m := &dto.Metric{}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserveCountsOutcomes(t *testing.T) {
	succeeded := topic.New[api.Success]()
	failed := topic.New[api.Failure]()

	successes := CallsTotal.WithLabelValues(SideClient, "observeOp", OutcomeSuccess)
	failures := CallsTotal.WithLabelValues(SideClient, "observeOp", OutcomeFailure)
	beforeOK, beforeFail := testutil.ToFloat64(successes), testutil.ToFloat64(failures)
	beforeSamples := histogramCount(t, CallDuration, SideClient, "observeOp")

	stop := Observe(SideClient, succeeded, failed)
	succeeded.Publish(api.Success{Operation: "observeOp", Duration: 10 * time.Millisecond})
	succeeded.Publish(api.Success{Operation: "observeOp", Duration: 20 * time.Millisecond})
	failed.Publish(api.Failure{Operation: "observeOp", Err: errors.New("boom")})

	if got := testutil.ToFloat64(successes) - beforeOK; got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(failures) - beforeFail; got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if got := histogramCount(t, CallDuration, SideClient, "observeOp") - beforeSamples; got != 3 {
		t.Errorf("expected 3 duration samples, got %d", got)
	}

	stop()
	succeeded.Publish(api.Success{Operation: "observeOp"})
	if got := testutil.ToFloat64(successes) - beforeOK; got != 2 {
		t.Errorf("expected no recording after stop, got %v", got)
	}
	if succeeded.Len() != 0 || failed.Len() != 0 {
		t.Error("stop should unsubscribe both listeners")
	}
}

func TestObserveNilTopics(t *testing.T) {
	failed := topic.New[api.Failure]()
	stop := Observe(SideServer, nil, failed)
	defer stop()
	if failed.Len() != 1 {
		t.Fatalf("expected one listener, got %d", failed.Len())
	}
}

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/user/getUser", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{}")
	})

	notFound := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/user/{id}", "4xx")
	ok := HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/user/getUser", "2xx")
	before404, before200 := testutil.ToFloat64(notFound), testutil.ToFloat64(ok)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/user/7", nil),
		httptest.NewRequest(http.MethodGet, "/user/8", nil),
		httptest.NewRequest(http.MethodPost, "/user/getUser", strings.NewReader("{}")),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(notFound) - before404; got != 2 {
		t.Errorf("expected 2 requests on the pattern, got %v", got)
	}
	if got := testutil.ToFloat64(ok) - before200; got != 1 {
		t.Errorf("expected 1 ok request, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	CallsTotal.WithLabelValues(SideServer, "exposed", OutcomeSuccess).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `uapi_calls_total{operation="exposed",outcome="success",side="server"}`) {
		t.Fatalf("metric missing from exposition:\n%s", rec.Body.String())
	}
}
