package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"postflow/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := metrics.New("postflow")
	m.ObservePublish(metrics.ResultSuccess, "", 1200*time.Millisecond)
	m.ObservePublish(metrics.ResultFailure, "transient", 300*time.Millisecond)
	m.ObservePublish(metrics.ResultFailure, "transient", 300*time.Millisecond)
	m.ObserveTransition("approved")
	m.ObserveCycle(time.Unix(1700000000, 0), map[string]int{"approved": 2, "published": 5})

	body := scrape(t, m)
	for _, want := range []string{
		`postflow_publish_attempts_total{kind="",result="success"} 1`,
		`postflow_publish_attempts_total{kind="transient",result="failure"} 2`,
		`postflow_post_transitions_total{to="approved"} 1`,
		`postflow_publish_cycles_total 1`,
		`postflow_posts{status="published"} 5`,
		`postflow_last_cycle_timestamp_seconds 1.7e+09`,
		`postflow_publish_duration_seconds_count 3`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObservePublish(metrics.ResultSuccess, "", time.Second)
	m.ObserveTransition("published")
	m.ObserveCycle(time.Now(), nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
