package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

// PageAnalyzer produces a verdict for one page. *Classifier satisfies it.
type PageAnalyzer interface {
	Analyze(ctx context.Context, url, text string) (model.AnalysisRecord, error)
}

// ReportStore persists a finished report. *storage.Layout satisfies it.
type ReportStore interface {
	WriteReport(report model.AnalysisReport) (string, error)
}

// Batch analyzes all pages of a job and stores one report for them.
type Batch struct {
	analyzer PageAnalyzer
	store    ReportStore
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
	now      func() time.Time
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithDelay sets the pause between two analyzer calls.
func WithDelay(d time.Duration) BatchOption {
	return func(b *Batch) {
		b.delay = d
	}
}

// WithSleep replaces the context-aware wait used between calls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) BatchOption {
	return func(b *Batch) {
		b.sleep = sleep
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = l
	}
}

// WithBatchClock overrides the time source for the report timestamp.
func WithBatchClock(now func() time.Time) BatchOption {
	return func(b *Batch) {
		b.now = now
	}
}

// NewBatch returns a Batch analyzing with analyzer and writing to store.
func NewBatch(analyzer PageAnalyzer, store ReportStore, opts ...BatchOption) *Batch {
	b := &Batch{
		analyzer: analyzer,
		store:    store,
		delay:    3 * time.Second,
		sleep:    Sleep,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AnalyzeJob analyzes pages in order, waiting the configured delay between
// calls but not before the first. Pages that fail are left out. When at
// least one verdict exists, a report with the verdicts and their summary is
// written and its path returned; otherwise ErrNoAnalyses is returned.
//
// Cancelling ctx or a fatal provider error stops the batch early. Verdicts
// collected until then are still written.
func (b *Batch) AnalyzeJob(ctx context.Context, jobID string, pages []model.Page) (string, error) {
	b.logger.Info("starting analysis", "job_id", jobID, "pages", len(pages))

	records := make([]model.AnalysisRecord, 0, len(pages))
	for i, page := range pages {
		if i > 0 && b.delay > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				b.logger.Warn("analysis interrupted", "job_id", jobID, "analyzed", len(records), "error", err)
				break
			}
		}
		if ctx.Err() != nil {
			b.logger.Warn("analysis interrupted", "job_id", jobID, "analyzed", len(records), "error", ctx.Err())
			break
		}

		record, err := b.analyzer.Analyze(ctx, page.URL, page.TextContent)
		if errors.Is(err, ErrFatalAPI) {
			b.logger.Error("aborting analysis", "job_id", jobID, "url", page.URL, "error", err)
			break
		}
		if err != nil {
			b.logger.Error("failed to analyze page", "job_id", jobID, "url", page.URL, "error", err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		b.logger.Warn("no successful analyses", "job_id", jobID)
		return "", fmt.Errorf("%w for job %s", ErrNoAnalyses, jobID)
	}

	now := b.now()
	path, err := b.store.WriteReport(model.AnalysisReport{
		CrawlID:   jobID,
		Timestamp: now,
		Analyses:  records,
		Summary:   model.Summarize(records, now),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save analysis report: %w", err)
	}

	b.logger.Info("analysis completed", "job_id", jobID, "analyzed", len(records), "report", path)
	return path, nil
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
