// Package metrics exposes Prometheus collectors for crawl jobs, page
// fetches and analysis runs.
//
// Every recording method accepts a nil *Metrics and does nothing, so
// components can be built without metrics in tests and one-shot CLI runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "chhaya"

// Label values for the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors.
type Metrics struct {
	JobsSubmitted    prometheus.Counter
	JobsDeduplicated prometheus.Counter
	JobsFinished     *prometheus.CounterVec
	JobsActive       prometheus.Gauge
	JobDuration      prometheus.Histogram
	PagesFetched     *prometheus.CounterVec
	AnalysisRuns     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of crawl jobs created",
		}),
		JobsDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jobs_deduplicated_total",
			Help:      "Submissions answered with an already active job",
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jobs_finished_total",
			Help:      "Crawl jobs that reached a terminal status",
		}, []string{"status"}),
		JobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "jobs_active",
			Help:      "Crawl jobs currently pending or in progress",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal status",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		}),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_fetched_total",
			Help:      "Page fetch attempts by result",
		}, []string{"result"}),
		AnalysisRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analysis_runs_total",
			Help:      "Analyzer batches by result",
		}, []string{"result"}),
	}
}

// JobSubmitted records a newly created job.
func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.JobsSubmitted.Inc()
	m.JobsActive.Inc()
}

// JobDeduplicated records a submission that returned an active job.
func (m *Metrics) JobDeduplicated() {
	if m == nil {
		return
	}
	m.JobsDeduplicated.Inc()
}

// JobFinished records a job reaching status after running for d.
func (m *Metrics) JobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.JobsActive.Dec()
	m.JobDuration.Observe(d.Seconds())
}

// PageFetched records one fetch attempt.
func (m *Metrics) PageFetched(ok bool) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(result(ok)).Inc()
}

// AnalysisRun records one analyzer batch.
func (m *Metrics) AnalysisRun(ok bool) {
	if m == nil {
		return
	}
	m.AnalysisRuns.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// Handler returns the HTTP handler exposing the collectors of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
