package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findCounter(t *testing.T, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for k, want := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == want {
						found = true
						break
					}
				}
				if !found {
					matched = false
					break
				}
			}
			if matched {
				return m
			}
		}
	}
	return nil
}

func TestGinMiddleware_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/protection/:owner", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/protection/0xabc", nil))

	m := findCounter(t, "scream_http_requests_total", map[string]string{
		"method": "GET",
		"path":   "/protection/:owner",
		"status": "2xx",
	})
	if m == nil {
		t.Fatal("no counter recorded for the route pattern")
	}
	if m.GetCounter().GetValue() < 1 {
		t.Errorf("counter = %v, want >= 1", m.GetCounter().GetValue())
	}
}

func TestGinMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/no/such/route", nil))

	m := findCounter(t, "scream_http_requests_total", map[string]string{
		"path":   "unmatched",
		"status": "4xx",
	})
	if m == nil {
		t.Fatal("unmatched requests should be recorded under the unmatched label")
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[int]string{
		102: "1xx",
		200: "2xx",
		201: "2xx",
		301: "3xx",
		404: "4xx",
		500: "5xx",
		503: "5xx",
	}
	for code, want := range cases {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
