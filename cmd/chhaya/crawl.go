package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nao1215/chhaya/internal/aggregate"
	"github.com/nao1215/chhaya/internal/analyzer"
	"github.com/nao1215/chhaya/internal/config"
	"github.com/nao1215/chhaya/internal/crawljob"
	"github.com/nao1215/chhaya/internal/discovery"
	"github.com/nao1215/chhaya/internal/fetcher"
	"github.com/nao1215/chhaya/internal/metrics"
	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/pipeline"
	"github.com/nao1215/chhaya/internal/report"
	"github.com/nao1215/chhaya/internal/storage"
	"github.com/nao1215/chhaya/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <query>...",
		Short: "Discover and fetch .onion pages for search queries",
		Long: `Crawl runs one job per query. Each job asks the discovery tool to search
the configured dark-web search engines through Tor, keeps at most --limit
links per engine, fetches every kept page and stores its text under the
output directory.

With --analyze every fetched page is assessed by a language model and a
threat report is stored and printed with the job.

Interrupting the command (Ctrl+C) cancels running jobs. Pages fetched so
far are kept and reported.

Examples:
  # Crawl one query with the embedded Tor daemon
  chhaya crawl "leaked database"

  # Several queries at once, through an existing Tor proxy
  chhaya crawl --tor-proxy 127.0.0.1:9050 "ransomware" "carding forum"

  # Keep 3 links per engine and only query two engines
  chhaya crawl --limit 3 --engines ahmia,torch "credentials"

  # Analyze pages with a local ollama model and write a Markdown report
  chhaya crawl --analyze --llm-provider ollama --llm-model llama3 -m -o report.md "exploit kit"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	addConfigFlag(cmd)

	// Crawl behavior flags
	cmd.Flags().IntP("limit", "l", config.DefaultPerEngineLimit,
		"Maximum links kept per search engine")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Pause between two page fetches of a job")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("output-dir", "",
		"Directory for pages, discovery artifacts and reports (default: XDG data directory)")
	cmd.Flags().StringSlice("engines", config.DefaultEngines,
		"Search engines queried by the discovery tool")

	// Tor connection flags
	cmd.Flags().BoolP("external-tor", "e", false,
		"Use an existing Tor proxy instead of starting an embedded daemon")
	cmd.Flags().String("tor-proxy", config.DefaultTorProxyAddress,
		"Address of the existing Tor SOCKS5 proxy (implies --external-tor)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Analysis flags
	cmd.Flags().BoolP("analyze", "a", false,
		"Assess fetched pages with a language model")
	cmd.Flags().String("llm-provider", config.DefaultLLMProvider,
		"Language model provider: googleai, anthropic, openai or ollama")
	cmd.Flags().String("llm-model", config.DefaultLLMModel,
		"Language model name")

	// Observability flags
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g., 127.0.0.1:9090)")
	cmd.Flags().String("log-file", "",
		"Also write JSON logs to this file")

	addReportFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // Best effort on exit

	// API keys may live in a .env file next to the configuration.
	if err := config.LoadEnv(); err != nil {
		logger.Warn("ignoring .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, args, cmd.OutOrStdout(), logger)
}

// runCrawl connects to Tor, wires the components and runs one job per query.
func runCrawl(ctx context.Context, cfg *config.Config, queries []string, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"queries", queries,
		"useExternalTor", cfg.UseExternalTor,
		"perEngineLimit", cfg.PerEngineLimit,
		"analyze", cfg.Analyze,
	)

	layout := storage.New(cfg.OutputDir)
	if err := layout.Init(); err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = startMetrics(ctx, cfg.MetricsAddr, logger)
	}

	client, stopTor, err := connectTor(ctx, cfg, stdout, logger)
	if err != nil {
		return err
	}
	defer stopTor()

	var jobAnalyzer crawljob.JobAnalyzer
	if cfg.Analyze {
		jobAnalyzer, err = newAnalyzer(ctx, cfg, layout, logger)
		if err != nil {
			return err
		}
	}

	f := fetcher.New(client.NewHTTPClient(), layout,
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLimits(fetcher.Limits{MaxTextLength: cfg.MaxTextLength, MaxImages: cfg.MaxImages}),
		fetcher.WithLogger(logger),
	)
	d := discovery.NewOnionSearch(cfg.DiscoveryCommand, logger)
	e := discovery.NewExtractor(logger)

	env := &crawlEnv{
		cfg:    cfg,
		layout: layout,
		steps: func() []pipeline.Step {
			return pipeline.DefaultSteps(d, e, f, layout, client.ProxyAddress(), cfg.Engines, logger,
				pipeline.WithFetchDelay(cfg.CrawlDelay),
				pipeline.WithFetchLogger(logger),
			)
		},
		analyzer: jobAnalyzer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	return env.run(ctx, queries, stdout)
}

// crawlEnv holds the wired components of one crawl command.
type crawlEnv struct {
	cfg      *config.Config
	layout   *storage.Layout
	steps    func() []pipeline.Step
	analyzer crawljob.JobAnalyzer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// run submits every query, waits for the jobs and prints their reports.
func (env *crawlEnv) run(ctx context.Context, queries []string, stdout io.Writer) error {
	opts := []crawljob.Option{
		crawljob.WithPerEngineLimit(env.cfg.PerEngineLimit),
		crawljob.WithMetrics(env.metrics),
		crawljob.WithLogger(env.logger),
		crawljob.WithBaseContext(ctx),
	}
	if env.analyzer != nil {
		opts = append(opts, crawljob.WithAnalyzer(env.analyzer))
	}
	orch := crawljob.New(crawljob.NewRegistry(), env.steps, opts...)

	// Repeated queries share a job while it runs.
	var ids []string
	seen := make(map[string]bool)
	for _, q := range queries {
		id, err := orch.Submit(q, env.cfg.PerEngineLimit)
		if err != nil {
			env.logger.Warn("query rejected", "query", q, "error", err)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return errors.New("no valid queries provided")
	}

	fmt.Fprintf(stdout, "Started %d crawl job(s)...\n\n", len(ids))
	startTime := env.now()
	orch.Wait()
	fmt.Fprintf(stdout, "Crawl finished in %s\n\n", env.now().Sub(startTime).Round(time.Millisecond))

	reports := make([]*report.JobReport, 0, len(ids))
	failed := 0
	for _, id := range ids {
		job, ok := orch.Status(id)
		if !ok {
			continue
		}
		if job.Status == model.JobFailed {
			failed++
		}
		reports = append(reports, env.jobReport(ctx, job))
	}

	if err := outputReports(env.cfg, stdout, reports); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawl job(s) failed", failed, len(reports))
	}
	return nil
}

// jobReport builds the report of a finished job. Analyses are only looked
// up for the job itself; other jobs' reports never leak into a crawl.
func (env *crawlEnv) jobReport(ctx context.Context, job model.Job) *report.JobReport {
	var records []model.AnalysisRecord
	if env.analyzer != nil && len(job.Pages) > 0 {
		agg := aggregate.New(env.layout,
			aggregate.WithFallbackPolicy(config.FallbackNone),
			aggregate.WithLogger(env.logger),
		)
		// The run context may already be cancelled; reading local files
		// must still succeed.
		res, err := agg.Aggregate(context.WithoutCancel(ctx), job.ID)
		if err != nil {
			env.logger.Error("failed to load analysis", "job_id", job.ID, "error", err)
		}
		records = res.Records
	}
	return report.NewJobReport(job.ID, &job, records, env.now())
}

// startMetrics registers the collectors and serves them until ctx is done.
func startMetrics(ctx context.Context, addr string, logger *slog.Logger) *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	go func() {
		if err := metrics.Serve(ctx, addr, reg, logger); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return m
}

// clientOptions turns cfg into Tor client options.
func clientOptions(cfg *config.Config, logger *slog.Logger) []tor.ClientOption {
	return []tor.ClientOption{
		tor.WithRetryPolicy(tor.RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor,
			StatusCodes:   cfg.RetryStatusCodes,
		}),
		tor.WithUserAgent(cfg.UserAgent),
		tor.WithLogger(logger),
	}
}

// connectTor returns a verified Tor client. With an embedded daemon the
// returned stop function shuts it down; otherwise it does nothing.
func connectTor(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*tor.Client, func(), error) {
	if cfg.UseExternalTor {
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout, clientOptions(cfg, logger)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if err := client.CheckConnection(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				err, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client, func() {}, nil
	}
	return startEmbeddedTor(ctx, cfg, stdout, logger)
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client using it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*tor.Client, func(), error) {
	fmt.Fprintln(stdout, "Starting embedded Tor daemon...")
	fmt.Fprintf(stdout, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	daemon := tor.NewDaemon(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithDaemonLogger(logger),
	)
	if err := daemon.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := daemon.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	fmt.Fprintf(stdout, "SOCKS proxy: %s\n\n", daemon.SocksAddr())

	client, err := daemon.NewClient(cfg.Timeout, clientOptions(cfg, logger)...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx).Err(); err != nil {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}
	return client, stop, nil
}

// newAnalyzer builds the language model analyzer that stores its reports
// in layout.
func newAnalyzer(ctx context.Context, cfg *config.Config, layout *storage.Layout, logger *slog.Logger) (*analyzer.Batch, error) {
	llm, err := analyzer.NewModel(ctx, analyzer.SettingsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to set up analyzer: %w", err)
	}
	logger.Info("analyzer ready", "model", llm.Name())

	classifier := analyzer.NewClassifier(llm, analyzer.WithClassifierLogger(logger))
	return analyzer.NewBatch(classifier, layout,
		analyzer.WithDelay(cfg.AnalysisDelay),
		analyzer.WithBatchLogger(logger),
	), nil
}
