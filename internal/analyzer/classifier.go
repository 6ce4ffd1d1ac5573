package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/tor"
)

const promptTemplate = `
You are a darknet/darkweb intelligence analyst for Chhaya OS.

Given the raw content of a darknet page, analyze and return a report in JSON format with the following keys:

- title: string (extracted or inferred page title)
- url: string (the page URL)
- summary: string (concise summary of page content)
- risk_assessment: object with:
  - score: integer (0-100, where 100 is highest risk)
  - level: string (low/medium/high/critical)
  - category: string (type of threat/content)
- keywords: array of strings (key terms found)
- pii: object with:
  - names: array of person names found
  - emails: array of email addresses
  - websites: array of website URLs
  - contact_numbers: array of phone numbers
- action_plan: string (recommended actions based on analysis)

Darknet page content:
%s

Page URL:
%s

Please return only valid JSON. Do not use markdown, triple backticks, or any explanation. The response must start with { and end with }.
`

// BuildPrompt returns the analyst prompt for a page. The page text comes
// before the URL.
func BuildPrompt(text, url string) string {
	return fmt.Sprintf(promptTemplate, text, url)
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// verdict mirrors the JSON the model is asked for. The level stays a
// string so that a bad level can fall back to the score.
type verdict struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
	Risk    *struct {
		Score    *json.Number `json:"score"`
		Level    string       `json:"level"`
		Category string       `json:"category"`
	} `json:"risk_assessment"`
	Keywords   []string  `json:"keywords"`
	PII        model.PII `json:"pii"`
	ActionPlan string    `json:"action_plan"`
}

// Classifier turns page text into an analysis record.
type Classifier struct {
	gen    Generator
	logger *slog.Logger
	now    func() time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the logger.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = l
	}
}

// WithClassifierClock overrides the time source used for AnalyzedAt.
func WithClassifierClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		c.now = now
	}
}

// NewClassifier returns a Classifier backed by gen.
func NewClassifier(gen Generator, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		gen:    gen,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze asks the model for a verdict on one page.
//
// The score is clamped to 0-100 and the level is derived from it when the
// model leaves it out or names an unknown one. E-mail addresses and v3
// onion addresses found in text are added to the PII lists.
func (c *Classifier) Analyze(ctx context.Context, url, text string) (model.AnalysisRecord, error) {
	out, err := c.gen.Generate(ctx, BuildPrompt(text, url))
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("%w: %s: %w", ErrAnalyzerFailure, url, err)
	}

	record, err := parseVerdict(out)
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("%w: %s: %w", ErrAnalyzerFailure, url, err)
	}

	if record.URL == "" {
		record.URL = url
	}
	if record.Title == "" {
		record.Title = url
	}
	record.PII.Emails = mergeUnique(record.PII.Emails, emailPattern.FindAllString(text, -1))
	record.PII.Websites = mergeUnique(record.PII.Websites, tor.ExtractV3Addresses(text))
	record.AnalyzedAt = c.now()

	c.logger.Info("analyzed page", "url", url, "score", record.Risk.Score, "level", record.Risk.Level.String())
	return record, nil
}

// parseVerdict decodes a model answer, tolerating a markdown code fence
// around the JSON.
func parseVerdict(out string) (model.AnalysisRecord, error) {
	var v verdict
	if err := json.Unmarshal([]byte(stripFence(out)), &v); err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("invalid JSON answer: %w", err)
	}
	if v.Risk == nil || v.Risk.Score == nil {
		return model.AnalysisRecord{}, errors.New("answer has no risk score")
	}

	f, err := v.Risk.Score.Float64()
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("invalid risk score: %w", err)
	}
	score := int(math.Round(math.Max(0, math.Min(100, f))))

	level, err := model.ParseRiskLevel(v.Risk.Level)
	if err != nil {
		level = model.RiskLevelForScore(score)
	}

	return model.AnalysisRecord{
		Title:   strings.TrimSpace(v.Title),
		URL:     strings.TrimSpace(v.URL),
		Summary: v.Summary,
		Risk: model.RiskAssessment{
			Score:    score,
			Level:    level,
			Category: v.Risk.Category,
		},
		Keywords: nonNil(v.Keywords),
		PII: model.PII{
			Names:          nonNil(v.PII.Names),
			Emails:         nonNil(v.PII.Emails),
			Websites:       nonNil(v.PII.Websites),
			ContactNumbers: nonNil(v.PII.ContactNumbers),
		},
		ActionPlan: v.ActionPlan,
	}, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// mergeUnique appends the entries of extra missing from base and drops
// duplicates already in base. Order of first appearance is kept.
func mergeUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
