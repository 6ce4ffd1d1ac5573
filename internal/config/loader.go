package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name searched for in the working
// directory and the home directory.
const DefaultConfigFile = ".chhaya"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File mirrors the YAML layout of the .chhaya file. Pointer and nil-slice
// fields distinguish "not set" from an explicit zero so that ApplyFile only
// overrides what the file mentions.
type File struct {
	Tor      TorSection      `yaml:"tor,omitempty"`
	Crawl    CrawlSection    `yaml:"crawl,omitempty"`
	Analysis AnalysisSection `yaml:"analysis,omitempty"`
	Output   OutputSection   `yaml:"output,omitempty"`
}

// TorSection configures the proxy and its retry policy.
type TorSection struct {
	Proxy            string    `yaml:"proxy,omitempty"`
	External         *bool     `yaml:"external,omitempty"`
	StartupTimeout   *Duration `yaml:"startup_timeout,omitempty"`
	MaxRetries       *int      `yaml:"max_retries,omitempty"`
	BackoffFactor    *Duration `yaml:"backoff_factor,omitempty"`
	RetryStatusCodes []int     `yaml:"retry_status_codes,omitempty"`
	UserAgent        string    `yaml:"user_agent,omitempty"`
}

// CrawlSection configures discovery and page fetching.
type CrawlSection struct {
	Timeout          *Duration `yaml:"timeout,omitempty"`
	Delay            *Duration `yaml:"delay,omitempty"`
	PerEngineLimit   *int      `yaml:"per_engine_limit,omitempty"`
	Engines          []string  `yaml:"engines,omitempty"`
	DiscoveryCommand string    `yaml:"discovery_command,omitempty"`
	MaxTextLength    *int      `yaml:"max_text_length,omitempty"`
	MaxImages        *int      `yaml:"max_images,omitempty"`
	MaxBodySize      *int64    `yaml:"max_body_size,omitempty"`
}

// AnalysisSection configures the language model analyzer and aggregation.
type AnalysisSection struct {
	Enabled        *bool     `yaml:"enabled,omitempty"`
	Provider       string    `yaml:"provider,omitempty"`
	Model          string    `yaml:"model,omitempty"`
	ServerURL      string    `yaml:"server_url,omitempty"`
	Delay          *Duration `yaml:"delay,omitempty"`
	FallbackPolicy string    `yaml:"fallback_policy,omitempty"`
}

// OutputSection configures where artifacts, logs and metrics go.
type OutputSection struct {
	Dir         string `yaml:"dir,omitempty"`
	LogFile     string `yaml:"log_file,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("2s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadConfigFile parses the YAML file at path.
// A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns the config file to load, or "" if there is none.
// An explicit path wins; otherwise .chhaya in the working directory, then
// in the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// ApplyFile overrides c with every option set in f.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	setString(&c.TorProxyAddress, f.Tor.Proxy)
	setBool(&c.UseExternalTor, f.Tor.External)
	setDuration(&c.TorStartupTimeout, f.Tor.StartupTimeout)
	setInt(&c.MaxRetries, f.Tor.MaxRetries)
	setDuration(&c.BackoffFactor, f.Tor.BackoffFactor)
	if f.Tor.RetryStatusCodes != nil {
		c.RetryStatusCodes = append([]int(nil), f.Tor.RetryStatusCodes...)
	}
	setString(&c.UserAgent, f.Tor.UserAgent)

	setDuration(&c.Timeout, f.Crawl.Timeout)
	setDuration(&c.CrawlDelay, f.Crawl.Delay)
	setInt(&c.PerEngineLimit, f.Crawl.PerEngineLimit)
	if f.Crawl.Engines != nil {
		c.Engines = append([]string(nil), f.Crawl.Engines...)
	}
	setString(&c.DiscoveryCommand, f.Crawl.DiscoveryCommand)
	setInt(&c.MaxTextLength, f.Crawl.MaxTextLength)
	setInt(&c.MaxImages, f.Crawl.MaxImages)
	if f.Crawl.MaxBodySize != nil {
		c.MaxBodySize = *f.Crawl.MaxBodySize
	}

	setBool(&c.Analyze, f.Analysis.Enabled)
	setString(&c.LLMProvider, f.Analysis.Provider)
	setString(&c.LLMModel, f.Analysis.Model)
	setString(&c.LLMServerURL, f.Analysis.ServerURL)
	setDuration(&c.AnalysisDelay, f.Analysis.Delay)
	setString(&c.FallbackPolicy, f.Analysis.FallbackPolicy)

	setString(&c.OutputDir, f.Output.Dir)
	setString(&c.LogFile, f.Output.LogFile)
	setString(&c.MetricsAddr, f.Output.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

// API key environment variables per analyzer provider.
var apiKeyEnv = map[string]string{
	ProviderGoogleAI:  "GEMINI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. With no
// arguments it reads ./.env. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// APIKeyEnv returns the environment variable holding the API key for the
// provider, or "" when the provider needs none.
func APIKeyEnv(provider string) string {
	return apiKeyEnv[provider]
}

// APIKey returns the API key for the configured provider from the environment.
func (c *Config) APIKey() string {
	name := APIKeyEnv(c.LLMProvider)
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
