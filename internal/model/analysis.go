package model

import (
	"time"
	"unicode/utf8"
)

// RiskAssessment is the analyzer's verdict on a page.
type RiskAssessment struct {
	// Score is 0-100, higher is riskier.
	Score    int       `json:"score"`
	Level    RiskLevel `json:"level"`
	Category string    `json:"category"`
}

// PII holds personal data found on a page. Each list is duplicate-free.
type PII struct {
	Names          []string `json:"names"`
	Emails         []string `json:"emails"`
	Websites       []string `json:"websites"`
	ContactNumbers []string `json:"contact_numbers"`
}

// AnalysisRecord is one analyzer verdict for one page URL.
type AnalysisRecord struct {
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Summary    string         `json:"summary"`
	Risk       RiskAssessment `json:"risk_assessment"`
	Keywords   []string       `json:"keywords"`
	PII        PII            `json:"pii"`
	ActionPlan string         `json:"action_plan"`
	AnalyzedAt time.Time      `json:"analysis_timestamp"`
}

// Outranks reports whether r is a better verdict than other for the same
// URL: a strictly higher score, or an equal score with a longer summary.
// Equal score and equal summary length do not outrank, so whichever record
// was seen first stays.
func (r AnalysisRecord) Outranks(other AnalysisRecord) bool {
	if r.Risk.Score != other.Risk.Score {
		return r.Risk.Score > other.Risk.Score
	}
	return utf8.RuneCountInString(r.Summary) > utf8.RuneCountInString(other.Summary)
}

// AnalysisReport is the body of one report artifact: every record of one
// analyzer batch plus the summary computed over them.
type AnalysisReport struct {
	CrawlID   string           `json:"crawl_id"`
	Timestamp time.Time        `json:"timestamp"`
	Analyses  []AnalysisRecord `json:"analyses"`
	Summary   ReportSummary    `json:"summary"`
}
