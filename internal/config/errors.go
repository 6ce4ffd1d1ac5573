package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidAnalysisDelay is returned when the analysis delay is negative.
	ErrInvalidAnalysisDelay = errors.New("invalid analysis delay: must be non-negative")

	// ErrInvalidPerEngineLimit is returned when the per-engine limit is not positive.
	ErrInvalidPerEngineLimit = errors.New("invalid per-engine limit: must be positive")

	// ErrInvalidExtractionLimits is returned for a non-positive text length
	// or a negative image count.
	ErrInvalidExtractionLimits = errors.New("invalid extraction limits: text length must be positive and image count non-negative")

	// ErrInvalidMaxBodySize is returned when the body size cap is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRetryPolicy is returned for negative retries or backoff.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy: retries and backoff must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("no output directory configured")

	// ErrNoDiscoveryCommand is returned when the discovery command is blank.
	ErrNoDiscoveryCommand = errors.New("no discovery command configured")

	// ErrInvalidFallbackPolicy is returned for an unknown fallback policy.
	ErrInvalidFallbackPolicy = errors.New(`invalid fallback policy: must be "all" or "none"`)

	// ErrUnknownLLMProvider is returned for an unsupported analyzer provider.
	ErrUnknownLLMProvider = errors.New("unknown LLM provider: must be googleai, anthropic, openai or ollama")
)
