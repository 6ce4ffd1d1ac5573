package analyzer

import "errors"

var (
	// ErrAnalyzerFailure is returned when the model could not be reached or
	// its answer could not be turned into a verdict.
	ErrAnalyzerFailure = errors.New("analysis failed")

	// ErrNoAnalyses is returned by Batch.AnalyzeJob when no page produced a
	// verdict. No report is written in that case.
	ErrNoAnalyses = errors.New("no successful analyses")

	// ErrMissingAPIKey is returned by NewModel when a hosted provider is
	// selected without an API key.
	ErrMissingAPIKey = errors.New("API key required")

	// ErrUnsupportedProvider is returned by NewModel for unknown providers.
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
)

// ErrFatalAPI marks provider errors that will not go away by trying the
// next page, such as exhausted quota or a rejected key. A Batch stops at
// the first one.
var ErrFatalAPI = errors.New("fatal LLM API error")
