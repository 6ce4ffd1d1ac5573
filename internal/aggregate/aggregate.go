package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/chhaya/internal/config"
	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/storage"
)

// ReportSource lists report artifacts. *storage.Layout satisfies it.
type ReportSource interface {
	ListReports(prefix string) ([]storage.Artifact, error)
}

// Result is the outcome of one aggregation.
type Result struct {
	JobID string
	// Records holds one verdict per URL, in the order the URLs were first
	// met while walking the reports newest first.
	Records []model.AnalysisRecord
	// Found is false when no report artifact was available at all.
	Found bool
	// Fallback is true when the records come from all reports because none
	// matched the job id.
	Fallback bool
	// Artifacts names the reports that were merged, newest first.
	Artifacts []string
	// Skipped names reports that could not be read or decoded.
	Skipped []string
}

// Aggregator merges report artifacts.
type Aggregator struct {
	source      ReportSource
	fallback    string
	concurrency int
	read        func(path string) (model.AnalysisReport, error)
	logger      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFallbackPolicy selects what happens when no report matches the job:
// config.FallbackAll scans every report, config.FallbackNone returns no
// records.
func WithFallbackPolicy(policy string) Option {
	return func(a *Aggregator) {
		a.fallback = policy
	}
}

// WithConcurrency bounds how many reports are read at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// New returns an Aggregator reading from source.
func New(source ReportSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      source,
		fallback:    config.FallbackAll,
		concurrency: 8,
		read:        storage.ReadReport,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate merges the reports written for jobID. A Result with Found set
// to false means there was nothing to merge; it is not an error. Reports
// that cannot be read are skipped with a warning.
func (a *Aggregator) Aggregate(ctx context.Context, jobID string) (Result, error) {
	result := Result{JobID: jobID}

	artifacts, err := a.source.ListReports(storage.JobReportPrefix(jobID))
	if err != nil {
		return result, fmt.Errorf("failed to list reports for job %s: %w", jobID, err)
	}

	if len(artifacts) == 0 && a.fallback == config.FallbackAll {
		artifacts, err = a.source.ListReports(storage.ReportPrefix)
		if err != nil {
			return result, fmt.Errorf("failed to list reports: %w", err)
		}
		if len(artifacts) > 0 {
			result.Fallback = true
			a.logger.Warn("no reports for job, falling back to all reports",
				"job_id", jobID, "reports", len(artifacts))
		}
	}
	if len(artifacts) == 0 {
		return result, nil
	}
	result.Found = true

	reports, err := a.load(ctx, artifacts)
	if err != nil {
		return result, err
	}

	position := make(map[string]int)
	for i, art := range artifacts {
		report := reports[i]
		if report == nil {
			result.Skipped = append(result.Skipped, art.Name)
			continue
		}
		result.Artifacts = append(result.Artifacts, art.Name)

		for _, rec := range report.Analyses {
			if rec.URL == "" {
				continue
			}
			at, seen := position[rec.URL]
			if !seen {
				position[rec.URL] = len(result.Records)
				result.Records = append(result.Records, rec)
				continue
			}
			if rec.Outranks(result.Records[at]) {
				result.Records[at] = rec
			}
		}
	}

	a.logger.Debug("aggregated reports", "job_id", jobID, "reports", len(result.Artifacts),
		"skipped", len(result.Skipped), "records", len(result.Records), "fallback", result.Fallback)
	return result, nil
}

// load reads all artifacts concurrently. The returned slice is aligned with
// artifacts; unreadable ones are nil.
func (a *Aggregator) load(ctx context.Context, artifacts []storage.Artifact) ([]*model.AnalysisReport, error) {
	reports := make([]*model.AnalysisReport, len(artifacts))

	g, ctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, art := range artifacts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := a.read(art.Path)
			if err != nil {
				a.logger.Warn("skipping unreadable report", "report", art.Name, "error", err)
				return nil
			}
			reports[i] = &report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}
	return reports, nil
}
