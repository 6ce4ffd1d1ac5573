package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.JobSubmitted()
	m.JobDeduplicated()
	m.JobFinished("completed", time.Second)
	m.PageFetched(true)
	m.AnalysisRun(false)
}

func TestRecording(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobSubmitted()
	m.JobSubmitted()
	m.JobDeduplicated()
	m.JobFinished("completed", 2*time.Second)
	m.PageFetched(true)
	m.PageFetched(true)
	m.PageFetched(false)
	m.AnalysisRun(true)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"submitted", m.JobsSubmitted, 2},
		{"deduplicated", m.JobsDeduplicated, 1},
		{"active", m.JobsActive, 1},
		{"completed", m.JobsFinished.WithLabelValues("completed"), 1},
		{"fetched ok", m.PagesFetched.WithLabelValues(ResultSuccess), 2},
		{"fetched failed", m.PagesFetched.WithLabelValues(ResultFailure), 1},
		{"analysis ok", m.AnalysisRuns.WithLabelValues(ResultSuccess), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg).JobSubmitted()

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "chhaya_jobs_submitted_total 1") {
		t.Errorf("metrics output lacks submitted counter:\n%s", body)
	}
}
