package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/chhaya/internal/discovery"
	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/storage"
)

// DiscoverStep runs the discovery tool for the job's query.
type DiscoverStep struct {
	discoverer   discovery.Discoverer
	layout       *storage.Layout
	proxyAddress string
	engines      []string
}

// NewDiscoverStep returns a DiscoverStep writing its artifact into layout.
func NewDiscoverStep(d discovery.Discoverer, layout *storage.Layout, proxyAddress string, engines []string) *DiscoverStep {
	return &DiscoverStep{discoverer: d, layout: layout, proxyAddress: proxyAddress, engines: engines}
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do runs discovery and records the artifact path on run.
func (s *DiscoverStep) Do(ctx context.Context, run *Run) error {
	run.DiscoveryPath = s.layout.DiscoveryPath(run.Query, run.JobID)
	return s.discoverer.Discover(ctx, discovery.Request{
		Query:        run.Query,
		PerEngineCap: run.PerEngineCap,
		ProxyAddress: s.proxyAddress,
		OutputPath:   run.DiscoveryPath,
		Engines:      s.engines,
	})
}

// ExtractStep reads the discovery artifact into links.
type ExtractStep struct {
	extractor *discovery.Extractor
}

// NewExtractStep returns an ExtractStep.
func NewExtractStep(e *discovery.Extractor) *ExtractStep {
	return &ExtractStep{extractor: e}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts the unique links and records their count as the job total.
func (s *ExtractStep) Do(_ context.Context, run *Run) error {
	links, err := s.extractor.Extract(run.DiscoveryPath)
	if err != nil {
		return err
	}
	run.Links = links
	run.Recorder.SetTotalLinks(len(links))
	return nil
}

// LimitStep applies the per-engine cap and keeps a copy of the result next
// to the discovery artifact.
type LimitStep struct {
	logger *slog.Logger
}

// NewLimitStep returns a LimitStep.
func NewLimitStep(logger *slog.Logger) *LimitStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LimitStep{logger: logger}
}

// Name returns the step name.
func (s *LimitStep) Name() string {
	return "limit"
}

// Do caps run.Links per engine. Failing to write the limited artifact is
// logged and does not stop the job.
func (s *LimitStep) Do(_ context.Context, run *Run) error {
	before := len(run.Links)
	run.Links = discovery.Limit(run.Links, run.PerEngineCap)

	if run.DiscoveryPath != "" {
		path := storage.LimitedPath(run.DiscoveryPath)
		if err := discovery.WriteLinks(path, run.Links); err != nil {
			s.logger.Warn("failed to save limited links", "job_id", run.JobID, "path", path, "error", err)
		}
	}

	s.logger.Info("limited links per engine", "job_id", run.JobID, "before", before, "after", len(run.Links), "cap", run.PerEngineCap)
	return nil
}

// PageFetcher retrieves one page. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (model.Page, error)
}

// FetchStep fetches every link in order with a politeness delay between
// consecutive attempts.
type FetchStep struct {
	fetcher PageFetcher
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchDelay sets the delay between fetch attempts.
func WithFetchDelay(d time.Duration) FetchStepOption {
	return func(s *FetchStep) {
		s.delay = d
	}
}

// WithFetchSleep replaces the context-aware wait used for the delay.
func WithFetchSleep(sleep func(ctx context.Context, d time.Duration) error) FetchStepOption {
	return func(s *FetchStep) {
		s.sleep = sleep
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep returns a FetchStep using f.
func NewFetchStep(f PageFetcher, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		fetcher: f,
		delay:   2 * time.Second,
		sleep:   wait,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do fetches run.Links one by one. A failed or panicking fetch counts as a
// failed link. Only cancellation stops the loop early.
func (s *FetchStep) Do(ctx context.Context, run *Run) error {
	for i, link := range run.Links {
		if i > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.fetchOne(ctx, link.URL)
		if err != nil {
			s.logger.Warn("failed to fetch link", "job_id", run.JobID, "url", link.URL, "error", err)
			run.Recorder.AddFailure(link.URL, err)
			continue
		}
		run.Recorder.AddPage(page)
	}
	return nil
}

func (s *FetchStep) fetchOne(ctx context.Context, url string) (page model.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while fetching: %v", r)
		}
	}()
	return s.fetcher.Fetch(ctx, url)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DefaultSteps returns the standard job stages in order.
func DefaultSteps(d discovery.Discoverer, e *discovery.Extractor, f PageFetcher, layout *storage.Layout,
	proxyAddress string, engines []string, logger *slog.Logger, fetchOpts ...FetchStepOption) []Step {
	if logger == nil {
		logger = slog.Default()
	}
	return []Step{
		NewDiscoverStep(d, layout, proxyAddress, engines),
		NewExtractStep(e),
		NewLimitStep(logger),
		NewFetchStep(f, append([]FetchStepOption{WithFetchLogger(logger)}, fetchOpts...)...),
	}
}
