package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/chhaya/internal/model"
)

// Recorder receives job progress as the steps make it.
type Recorder interface {
	// SetTotalLinks records how many unique links discovery produced.
	SetTotalLinks(n int)
	// AddPage records a fetched page.
	AddPage(page model.Page)
	// AddFailure records a link that could not be fetched.
	AddFailure(url string, err error)
}

// Run is the state one job carries through the pipeline.
type Run struct {
	JobID        string
	Query        string
	PerEngineCap int

	// DiscoveryPath is where the discovery step left its artifact.
	DiscoveryPath string

	// Links holds the extracted links, and after limiting the ones to fetch.
	Links []model.Link

	Recorder Recorder
}

// Step is one stage of the pipeline.
type Step interface {
	// Do executes the step. An error stops the pipeline and fails the job.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline running steps in the given order.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  steps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs every step in sequence and returns the first error,
// wrapped with the failing step's name. Cancellation is checked before
// each step; steps watch ctx themselves while running.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "job_id", run.JobID, "reason", err)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		p.logger.Debug("executing step", "step", step.Name(), "job_id", run.JobID)
		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "job_id", run.JobID, "error", err)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
