package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for XDG directory names and the config file name.
const AppName = "chhaya"

// Default configuration values. Timeouts and delays are sized for the Tor
// network, where a single page fetch routinely takes several seconds.
const (
	// DefaultTorProxyAddress is the Tor daemon's standard SOCKS port.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the politeness pause between two consecutive
	// fetches of the same job.
	DefaultCrawlDelay = 2 * time.Second

	// DefaultPerEngineLimit caps how many links each discovery engine may
	// contribute to a job.
	DefaultPerEngineLimit = 5

	// DefaultMaxTextLength caps extracted page text, in characters.
	DefaultMaxTextLength = 2000

	// DefaultMaxImages caps the number of image references kept per page.
	DefaultMaxImages = 10

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBackoffFactor is the first retry interval; each further retry
	// doubles it.
	DefaultBackoffFactor = 1 * time.Second

	// DefaultUserAgent is sent with every proxied request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultDiscoveryCommand is the external link discovery tool.
	DefaultDiscoveryCommand = "onionsearch"

	// DefaultLLMProvider and DefaultLLMModel select the analyzer backend.
	DefaultLLMProvider = ProviderGoogleAI
	DefaultLLMModel    = "gemini-2.0-flash"

	// DefaultAnalysisDelay is the pause between two analyzer calls of a batch.
	DefaultAnalysisDelay = 3 * time.Second

	// DefaultTorStartupTimeout bounds bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Analyzer providers understood by the analyzer package.
const (
	ProviderGoogleAI  = "googleai"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Fallback policies for report aggregation when a job has no report of its own.
const (
	// FallbackAll scans every report artifact. Results may belong to other jobs.
	FallbackAll = "all"

	// FallbackNone returns nothing when a job has no report of its own.
	FallbackNone = "none"
)

// DefaultEngines are the discovery engines queried when none are configured.
var DefaultEngines = []string{"ahmia", "torch", "onionland", "phobos", "haystack", "tor66"}

// DefaultRetryStatusCodes are HTTP statuses the proxy layer retries.
var DefaultRetryStatusCodes = []int{429, 500, 502, 503, 504}

// Config holds every runtime option. It is built from NewConfig, then the
// config file, then CLI flags, and passed down explicitly.
type Config struct {
	// TorProxyAddress is the SOCKS5 proxy in "host:port" form.
	TorProxyAddress string

	// UseExternalTor skips the embedded daemon and uses TorProxyAddress.
	UseExternalTor bool

	// TorStartupTimeout bounds embedded daemon bootstrap.
	TorStartupTimeout time.Duration

	// Timeout bounds a single page fetch.
	Timeout time.Duration

	// CrawlDelay is the pause between consecutive fetches within a job.
	CrawlDelay time.Duration

	// PerEngineLimit is the default per-engine cap when a submission does
	// not specify one.
	PerEngineLimit int

	// Engines restricts discovery to the listed engines. Empty lets the
	// discovery tool use its own list.
	Engines []string

	// DiscoveryCommand is the executable invoked for link discovery.
	DiscoveryCommand string

	// MaxTextLength caps extracted text, in characters.
	MaxTextLength int

	// MaxImages caps image references per page.
	MaxImages int

	// MaxBodySize caps the response body bytes read per page.
	MaxBodySize int64

	// MaxRetries and BackoffFactor configure the proxy retry layer.
	MaxRetries    int
	BackoffFactor time.Duration

	// RetryStatusCodes are retried by the proxy layer.
	RetryStatusCodes []int

	// UserAgent is sent with every proxied request.
	UserAgent string

	// OutputDir holds the pages/, reports/ and discovery/ areas.
	OutputDir string

	// Analyze enables the language model analysis of completed jobs.
	Analyze bool

	// LLMProvider, LLMModel and LLMServerURL select the analyzer backend.
	// LLMServerURL is only used by the ollama provider.
	LLMProvider  string
	LLMModel     string
	LLMServerURL string

	// AnalysisDelay is the pause between analyzer calls in a batch.
	AnalysisDelay time.Duration

	// FallbackPolicy controls cross-job report aggregation.
	FallbackPolicy string

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string

	// LogFile, when set, receives JSON log records.
	LogFile string

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select the report format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the explicit config file, if any.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		PerEngineLimit:    DefaultPerEngineLimit,
		Engines:           append([]string(nil), DefaultEngines...),
		DiscoveryCommand:  DefaultDiscoveryCommand,
		MaxTextLength:     DefaultMaxTextLength,
		MaxImages:         DefaultMaxImages,
		MaxBodySize:       DefaultMaxBodySize,
		MaxRetries:        DefaultMaxRetries,
		BackoffFactor:     DefaultBackoffFactor,
		RetryStatusCodes:  append([]int(nil), DefaultRetryStatusCodes...),
		UserAgent:         DefaultUserAgent,
		OutputDir:         XDGDataDir(),
		LLMProvider:       DefaultLLMProvider,
		LLMModel:          DefaultLLMModel,
		AnalysisDelay:     DefaultAnalysisDelay,
		FallbackPolicy:    FallbackAll,
	}
}

// XDGDataDir is the default output directory.
// On Linux: ~/.local/share/chhaya
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir is the default directory for log files.
// On Linux: ~/.local/state/chhaya
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate reports the first invalid option.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.AnalysisDelay < 0 {
		return ErrInvalidAnalysisDelay
	}
	if c.PerEngineLimit <= 0 {
		return ErrInvalidPerEngineLimit
	}
	if c.MaxTextLength <= 0 || c.MaxImages < 0 {
		return ErrInvalidExtractionLimits
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxRetries < 0 || c.BackoffFactor < 0 {
		return ErrInvalidRetryPolicy
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrNoOutputDir
	}
	if strings.TrimSpace(c.DiscoveryCommand) == "" {
		return ErrNoDiscoveryCommand
	}
	switch c.FallbackPolicy {
	case FallbackAll, FallbackNone:
	default:
		return ErrInvalidFallbackPolicy
	}
	switch c.LLMProvider {
	case ProviderGoogleAI, ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return ErrUnknownLLMProvider
	}
	return nil
}

// Subdirectories of OutputDir.
func (c *Config) PagesDir() string     { return filepath.Join(c.OutputDir, "pages") }
func (c *Config) ReportsDir() string   { return filepath.Join(c.OutputDir, "reports") }
func (c *Config) DiscoveryDir() string { return filepath.Join(c.OutputDir, "discovery") }
