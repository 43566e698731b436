package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
)

func TestMetricsRecordAndServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, reg)

	m.ObserveJob("completed")
	m.ObserveJob("completed")
	m.ObserveJob("failed")
	m.ObserveReaped(3)
	m.ObserveTick(50 * time.Millisecond)
	m.SetQueueDepth(jobs.Stats{Pending: 4, Processing: 1})

	if got := promtest.ToFloat64(m.jobsProcessed.WithLabelValues("completed")); got != 2 {
		t.Fatalf("completed: got=%v want=2", got)
	}
	if got := promtest.ToFloat64(m.jobsReaped); got != 3 {
		t.Fatalf("reaped: got=%v want=3", got)
	}
	if got := promtest.ToFloat64(m.queueDepth.WithLabelValues("pending")); got != 4 {
		t.Fatalf("pending depth: got=%v want=4", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "socialfeed_jobs_processed_total") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveJob("completed")
	m.ObserveReaped(1)
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	m.SetQueueDepth(jobs.Stats{})
}
