// Package analyzer asks a language model for a risk verdict on crawled
// pages and stores the verdicts of a job as a report artifact.
//
// The model is reached through the Generator interface. NewModel adapts a
// langchaingo backend (Google AI, Anthropic, OpenAI or Ollama) to it, and
// tests substitute their own implementation.
//
// A Classifier turns one page into a model.AnalysisRecord. A Batch runs a
// Classifier over every page of a job, pausing between calls to stay under
// provider rate limits, and writes one report with the records and their
// summary.
package analyzer
