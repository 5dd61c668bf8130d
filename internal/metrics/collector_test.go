package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewMetricsCollector()
	ctr := c.Counter("tradebot_test_total", "test counter", "")
	ctr.Inc()
	ctr.Add(2)
	if ctr.Value() != 3 {
		t.Fatalf("counter = %d, want 3", ctr.Value())
	}

	g := c.Gauge("tradebot_test_gauge", "test gauge", "")
	g.Set(5)
	g.Dec()
	if g.Value() != 4 {
		t.Fatalf("gauge = %d, want 4", g.Value())
	}

	// Same name returns the same instance.
	if c.Counter("tradebot_test_total", "test counter", "") != ctr {
		t.Fatal("counter registration is not idempotent")
	}
}

func TestHandlerRendersPrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("tradebot_scans_total", "scans", "").Add(7)
	c.Histogram("tradebot_latency_seconds", "latency", "", []float64{1, 5}).Observe(2)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "tradebot_scans_total 7") {
		t.Fatalf("counter missing from output:\n%s", body)
	}
	if !strings.Contains(body, `tradebot_latency_seconds_bucket{le="5"} 1`) {
		t.Fatalf("histogram bucket missing from output:\n%s", body)
	}
	if !strings.Contains(body, "tradebot_uptime_seconds") {
		t.Fatalf("uptime gauge missing from output:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}
