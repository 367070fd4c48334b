package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(Prometheus(WithRegistry(reg), WithNamespace("test")))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chi.URLParam(r, "id")))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	return r
}

func TestPrometheusRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newMetricsRouter(reg)

	for _, path := range []string{"/items/1", "/items/2", "/items/3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	m, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, mf := range m {
		if mf.GetName() != "test_http_requests_total" {
			continue
		}
		found = true
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("got %d series, want 1 (path params must not add series)", len(mf.GetMetric()))
		}
		labels := map[string]string{}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["route"] != "/items/{id}" || labels["method"] != "GET" || labels["status"] != "200" {
			t.Errorf("labels = %v", labels)
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
			t.Errorf("count = %v, want 3", got)
		}
	}
	if !found {
		t.Fatal("test_http_requests_total not gathered")
	}
}

func TestPrometheusStatusAndUnmatched(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newMetricsRouter(reg)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/fail", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

	expected := `
# HELP test_http_requests_total Total number of HTTP requests by route, method and status
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/fail",status="500"} 1
test_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_http_requests_total"); err != nil {
		t.Error(err)
	}
	if n, err := testutil.GatherAndCount(reg, "test_http_requests_in_flight"); err != nil || n != 1 {
		t.Errorf("in-flight series = %d, %v", n, err)
	}
}
