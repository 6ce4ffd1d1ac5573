package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/chhaya/internal/aggregate"
	"github.com/nao1215/chhaya/internal/config"
	"github.com/nao1215/chhaya/internal/report"
	"github.com/nao1215/chhaya/internal/storage"
)

// errNoReports is returned when the output directory holds no analysis
// report usable for the requested job.
var errNoReports = errors.New("no analysis reports found")

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Show the analysis results of a crawl job",
		Long: `Report collects the analysis reports stored for a job and merges them into
one verdict per page, keeping the most severe assessment when a page was
analyzed more than once.

When no report belongs to the job, verdicts from every stored report are
shown instead and the output is marked as a fallback. These may belong to
other jobs. Use --no-fallback to show nothing in that case.

Examples:
  # Text report for a job
  chhaya report 0b9c2f9e-5f0e-4b53-9a8e-2f8d3c1a7e11

  # JSON output, only reports of this job
  chhaya report --json --no-fallback 0b9c2f9e-5f0e-4b53-9a8e-2f8d3c1a7e11`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	addConfigFlag(cmd)
	cmd.Flags().String("output-dir", "",
		"Directory holding the stored reports (default: XDG data directory)")
	cmd.Flags().Bool("no-fallback", false,
		"Do not fall back to other jobs' reports when the job has none")
	addReportFlags(cmd)

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // Best effort on exit

	return runReport(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), logger, time.Now())
}

// runReport aggregates the stored reports of jobID and prints them.
func runReport(ctx context.Context, cfg *config.Config, jobID string, stdout io.Writer, logger *slog.Logger, now time.Time) error {
	agg := aggregate.New(storage.New(cfg.OutputDir),
		aggregate.WithFallbackPolicy(cfg.FallbackPolicy),
		aggregate.WithLogger(logger),
	)

	res, err := agg.Aggregate(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to aggregate reports: %w", err)
	}
	if !res.Found || len(res.Records) == 0 {
		return fmt.Errorf("%w for job %s in %s", errNoReports, jobID, cfg.OutputDir)
	}
	if res.Fallback {
		logger.Warn("no report matched the job, showing all stored analyses",
			"job_id", jobID, "reports", len(res.Artifacts))
	}

	r := report.NewJobReport(jobID, nil, res.Records, now)
	r.Fallback = res.Fallback
	return outputReports(cfg, stdout, []*report.JobReport{r})
}
