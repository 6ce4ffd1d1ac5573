package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nao1215/chhaya/internal/config"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Settings selects and authenticates a model backend.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	// ServerURL is only used by the ollama provider.
	ServerURL string
}

// SettingsFromConfig reads the analyzer settings from cfg. The API key
// comes from the provider's environment variable.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.APIKey(),
		ServerURL: cfg.LLMServerURL,
	}
}

// Model wraps a langchaingo model for text generation.
type Model struct {
	llm  llms.Model
	name string
}

// NewModel creates a Model for the configured provider.
func NewModel(ctx context.Context, s Settings) (*Model, error) {
	var (
		llm llms.Model
		err error
	)

	switch s.Provider {
	case config.ProviderGoogleAI:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv(s.Provider))
		}
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(s.APIKey),
			googleai.WithDefaultModel(s.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case config.ProviderAnthropic:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv(s.Provider))
		}
		llm, err = anthropic.New(
			anthropic.WithToken(s.APIKey),
			anthropic.WithModel(s.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderOpenAI:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv(s.Provider))
		}
		llm, err = openai.New(
			openai.WithToken(s.APIKey),
			openai.WithModel(s.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(s.Model)}
		if s.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(s.ServerURL))
		}
		llm, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, s.Provider)
	}

	return &Model{llm: llm, name: s.Model}, nil
}

// Generate sends prompt as a single human message.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	return out, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// fatalMarkers are lower-case fragments of provider errors that affect
// every request, not just the current one.
var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"api key not valid",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// wrapFatalError tags err with ErrFatalAPI when it is fatal and returns it
// unchanged otherwise.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
