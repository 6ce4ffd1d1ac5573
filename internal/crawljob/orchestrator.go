package crawljob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/chhaya/internal/metrics"
	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/pipeline"
)

// recentActivityCount is how many jobs Stats lists as recent activity.
const recentActivityCount = 5

// JobAnalyzer analyzes the pages of a finished job. *analyzer.Batch
// satisfies it.
type JobAnalyzer interface {
	AnalyzeJob(ctx context.Context, jobID string, pages []model.Page) (string, error)
}

// Orchestrator creates and runs crawl jobs.
type Orchestrator struct {
	registry   *Registry
	steps      func() []pipeline.Step
	defaultCap int
	analyzer   JobAnalyzer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	baseCtx    context.Context
	wg         sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPerEngineLimit sets the per-engine cap used when Submit gets none.
func WithPerEngineLimit(n int) Option {
	return func(o *Orchestrator) {
		o.defaultCap = n
	}
}

// WithAnalyzer enables analysis of completed jobs that have pages.
func WithAnalyzer(a JobAnalyzer) Option {
	return func(o *Orchestrator) {
		o.analyzer = a
	}
}

// WithMetrics records job and page metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock overrides the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides how job ids are made.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// WithBaseContext sets the context background work runs under. Cancelling
// it fails running jobs and stops pending analysis.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		o.baseCtx = ctx
	}
}

// New returns an Orchestrator storing jobs in registry. steps is called
// once per job and returns the stages that job runs through.
func New(registry *Registry, steps func() []pipeline.Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   registry,
		steps:      steps,
		defaultCap: 5,
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
		baseCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit starts a crawl job for query and returns its id. If a job for the
// same query is still pending or running, its id is returned instead.
// limit is the per-engine cap; zero or less selects the default.
// Submit returns before the job does any work.
func (o *Orchestrator) Submit(query string, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	if limit <= 0 {
		limit = o.defaultCap
	}

	e, created := o.registry.findOrInsert(query, func() *entry {
		now := o.now()
		return &entry{job: model.Job{
			ID:             o.newID(),
			Query:          query,
			PerEngineLimit: limit,
			Status:         model.JobPending,
			CreatedAt:      now,
			UpdatedAt:      now,
			Pages:          []model.Page{},
		}}
	})

	job := e.snapshot()
	if !created {
		o.metrics.JobDeduplicated()
		o.logger.Info("query already running", "job_id", job.ID, "query", query)
		return job.ID, nil
	}

	o.metrics.JobSubmitted()
	o.logger.Info("job submitted", "job_id", job.ID, "query", query, "per_engine_limit", limit)

	o.wg.Add(1)
	go o.execute(e)
	return job.ID, nil
}

// execute runs one job to a terminal status. Panics are recovered here and
// fail the job.
func (o *Orchestrator) execute(e *entry) {
	defer o.wg.Done()

	start := o.now()
	job := e.snapshot()
	logger := o.logger.With("job_id", job.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			e.transition(o.now(), model.JobFailed, fmt.Sprintf("internal error: %v", r))
		}
		final := e.snapshot()
		o.metrics.JobFinished(string(final.Status), o.now().Sub(start))
		logger.Info("job finished", "status", final.Status,
			"total_links", final.TotalLinks, "crawled", final.CrawledLinks, "failed", final.FailedLinks)
	}()

	e.transition(o.now(), model.JobInProgress, "")

	run := &pipeline.Run{
		JobID:        job.ID,
		Query:        job.Query,
		PerEngineCap: job.PerEngineLimit,
		Recorder:     &recorder{entry: e, now: o.now, metrics: o.metrics},
	}
	p := pipeline.New(o.steps(), pipeline.WithLogger(logger))
	if err := p.Execute(o.baseCtx, run); err != nil {
		e.transition(o.now(), model.JobFailed, err.Error())
		return
	}

	e.transition(o.now(), model.JobCompleted, "")

	if final := e.snapshot(); len(final.Pages) > 0 && o.analyzer != nil {
		o.analyze(final.ID, final.Pages)
	}
}

// analyze runs the analyzer in the background. Its outcome never affects
// the job.
func (o *Orchestrator) analyze(jobID string, pages []model.Page) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("analysis panicked", "job_id", jobID, "panic", r)
				o.metrics.AnalysisRun(false)
			}
		}()

		path, err := o.analyzer.AnalyzeJob(o.baseCtx, jobID, pages)
		if err != nil {
			o.logger.Error("analysis failed", "job_id", jobID, "error", err)
			o.metrics.AnalysisRun(false)
			return
		}
		o.metrics.AnalysisRun(true)
		o.logger.Info("analysis report written", "job_id", jobID, "path", path)
	}()
}

// Status returns a snapshot of the job. The boolean is false for unknown ids.
func (o *Orchestrator) Status(id string) (model.Job, bool) {
	e, ok := o.registry.get(id)
	if !ok {
		return model.Job{}, false
	}
	return e.snapshot(), true
}

// Delete removes a job from the registry. A job that is still running keeps
// working on its detached entry; its results are simply no longer visible.
func (o *Orchestrator) Delete(id string) error {
	if !o.registry.remove(id) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	o.logger.Info("job deleted", "job_id", id)
	return nil
}

// List returns snapshots of all jobs, newest first.
func (o *Orchestrator) List() []model.Job {
	return o.registry.snapshots()
}

// Pages returns the pages fetched so far for a job.
func (o *Orchestrator) Pages(id string) ([]model.Page, error) {
	job, ok := o.Status(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Pages, nil
}

// Stats summarizes all registered jobs.
func (o *Orchestrator) Stats() model.Stats {
	jobs := o.List()
	stats := model.Stats{
		TotalJobs:      len(jobs),
		RecentActivity: make([]model.JobBrief, 0, recentActivityCount),
	}
	for i, j := range jobs {
		switch {
		case j.Status.Active():
			stats.ActiveJobs++
		case j.Status == model.JobCompleted:
			stats.CompletedJobs++
		case j.Status == model.JobFailed:
			stats.FailedJobs++
		}
		stats.TotalPages += len(j.Pages)
		if i < recentActivityCount {
			stats.RecentActivity = append(stats.RecentActivity, j.Brief())
		}
	}
	return stats
}

// Wait blocks until every job and analysis started so far has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// recorder applies pipeline progress to a job entry.
type recorder struct {
	entry   *entry
	now     func() time.Time
	metrics *metrics.Metrics
}

func (r *recorder) SetTotalLinks(n int) {
	r.entry.update(r.now(), func(j *model.Job) {
		j.TotalLinks = n
	})
}

func (r *recorder) AddPage(page model.Page) {
	r.entry.update(r.now(), func(j *model.Job) {
		j.Pages = append(j.Pages, page)
		j.CrawledLinks++
	})
	r.metrics.PageFetched(true)
}

func (r *recorder) AddFailure(_ string, _ error) {
	r.entry.update(r.now(), func(j *model.Job) {
		j.FailedLinks++
	})
	r.metrics.PageFetched(false)
}
