package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/chhaya/internal/config"
	chlog "github.com/nao1215/chhaya/internal/log"
	"github.com/nao1215/chhaya/internal/report"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// addConfigFlag registers --config on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .chhaya in current or home directory)")
}

// addReportFlags registers the report format flags on cmd.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// loadConfig builds the effective configuration: defaults, then the
// configuration file, then every flag set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if cmd.Flags().Lookup("config") != nil {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}

		// A missing file is only an error when the user named one.
		found := config.FindConfigFile(path)
		switch {
		case found != "":
			f, err := config.LoadConfigFile(found)
			if err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
			}
			cfg.ApplyFile(f)
			cfg.ConfigFilePath = found
		case path != "":
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set explicitly into cfg. Flags the
// command does not define are ignored.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("limit") {
		if cfg.PerEngineLimit, err = fs.GetInt("limit"); err != nil {
			return err
		}
	}
	if changed("crawl-delay") {
		if cfg.CrawlDelay, err = fs.GetDuration("crawl-delay"); err != nil {
			return err
		}
	}
	if changed("timeout") {
		if cfg.Timeout, err = fs.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if changed("output-dir") {
		if cfg.OutputDir, err = fs.GetString("output-dir"); err != nil {
			return err
		}
	}
	if changed("engines") {
		if cfg.Engines, err = fs.GetStringSlice("engines"); err != nil {
			return err
		}
	}
	if changed("external-tor") {
		if cfg.UseExternalTor, err = fs.GetBool("external-tor"); err != nil {
			return err
		}
	}
	if changed("tor-proxy") {
		if cfg.TorProxyAddress, err = fs.GetString("tor-proxy"); err != nil {
			return err
		}
		cfg.UseExternalTor = true
	}
	if changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = fs.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if changed("analyze") {
		if cfg.Analyze, err = fs.GetBool("analyze"); err != nil {
			return err
		}
	}
	if changed("llm-provider") {
		if cfg.LLMProvider, err = fs.GetString("llm-provider"); err != nil {
			return err
		}
	}
	if changed("llm-model") {
		if cfg.LLMModel, err = fs.GetString("llm-model"); err != nil {
			return err
		}
	}
	if changed("metrics-addr") {
		if cfg.MetricsAddr, err = fs.GetString("metrics-addr"); err != nil {
			return err
		}
	}
	if changed("log-file") {
		if cfg.LogFile, err = fs.GetString("log-file"); err != nil {
			return err
		}
	}
	if changed("no-fallback") {
		noFallback, err := fs.GetBool("no-fallback")
		if err != nil {
			return err
		}
		if noFallback {
			cfg.FallbackPolicy = config.FallbackNone
		}
	}
	if changed("json") {
		if cfg.JSONReport, err = fs.GetBool("json"); err != nil {
			return err
		}
	}
	if changed("markdown") {
		if cfg.MarkdownReport, err = fs.GetBool("markdown"); err != nil {
			return err
		}
	}
	if changed("output") {
		if cfg.ReportFile, err = fs.GetString("output"); err != nil {
			return err
		}
	}
	return nil
}

// setupLogger creates the structured logger for cfg. Records go to the
// command's stderr and, when configured, to the log file as JSON.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closeLog, err := chlog.New(chlog.Options{
		Console: cmd.ErrOrStderr(),
		File:    cfg.LogFile,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closeLog, nil
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// outputReports writes reports in the requested format, to the report file
// when one is configured and to stdout otherwise.
func outputReports(cfg *config.Config, stdout io.Writer, reports []*report.JobReport) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may name sensitive sites; keep them owner-readable only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w := newReportWriter(cfg, output)
	for _, r := range reports {
		if _, err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write report for job %s: %w", r.JobID, err)
		}
	}
	return nil
}
