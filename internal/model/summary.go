package model

import (
	"sort"
	"time"
)

// topKeywordCount is how many keywords a summary lists.
const topKeywordCount = 10

// Recommendation texts emitted by Summarize.
const (
	RecommendCritical   = "CRITICAL: Immediate attention required for critical risk pages"
	RecommendHigh       = "HIGH: Monitor high-risk pages closely"
	RecommendMonitoring = "Consider implementing automated monitoring for high-risk domains"
	RecommendManageable = "Overall risk level appears manageable"
)

// RiskDistribution counts records per risk level.
type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Add counts one record at level. Invalid levels are ignored.
func (d *RiskDistribution) Add(level RiskLevel) {
	switch level {
	case RiskLow:
		d.Low++
	case RiskMedium:
		d.Medium++
	case RiskHigh:
		d.High++
	case RiskCritical:
		d.Critical++
	}
}

// Count returns the number of records at level.
func (d RiskDistribution) Count(level RiskLevel) int {
	switch level {
	case RiskLow:
		return d.Low
	case RiskMedium:
		return d.Medium
	case RiskHigh:
		return d.High
	case RiskCritical:
		return d.Critical
	default:
		return 0
	}
}

// HighRiskPage is a short reference to a high or critical record.
type HighRiskPage struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	RiskScore int    `json:"risk_score"`
	Category  string `json:"category"`
}

// KeywordFrequency is one entry of the keyword ranking.
type KeywordFrequency struct {
	Keyword   string `json:"keyword"`
	Frequency int    `json:"frequency"`
}

// ReportSummary aggregates a set of analysis records.
type ReportSummary struct {
	TotalPagesAnalyzed int                `json:"total_pages_analyzed"`
	RiskDistribution   RiskDistribution   `json:"risk_distribution"`
	HighRiskPages      []HighRiskPage     `json:"high_risk_pages"`
	TopKeywords        []KeywordFrequency `json:"top_keywords"`
	AnalysisTimestamp  time.Time          `json:"analysis_timestamp"`
	Recommendations    []string           `json:"recommendations"`
}

// Summarize computes the summary of records as of now.
//
// Keywords are ranked by frequency; keywords with the same frequency keep
// the order in which they were first seen.
func Summarize(records []AnalysisRecord, now time.Time) ReportSummary {
	s := ReportSummary{
		TotalPagesAnalyzed: len(records),
		HighRiskPages:      []HighRiskPage{},
		AnalysisTimestamp:  now,
	}

	freq := make(map[string]int)
	var order []string
	for _, r := range records {
		s.RiskDistribution.Add(r.Risk.Level)
		if r.Risk.Level >= RiskHigh {
			s.HighRiskPages = append(s.HighRiskPages, HighRiskPage{
				URL:       r.URL,
				Title:     r.Title,
				RiskScore: r.Risk.Score,
				Category:  r.Risk.Category,
			})
		}
		for _, kw := range r.Keywords {
			if _, ok := freq[kw]; !ok {
				order = append(order, kw)
			}
			freq[kw]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > topKeywordCount {
		order = order[:topKeywordCount]
	}
	s.TopKeywords = make([]KeywordFrequency, 0, len(order))
	for _, kw := range order {
		s.TopKeywords = append(s.TopKeywords, KeywordFrequency{Keyword: kw, Frequency: freq[kw]})
	}

	s.Recommendations = recommend(s.RiskDistribution, len(s.HighRiskPages))
	return s
}

func recommend(d RiskDistribution, highRiskPages int) []string {
	recs := []string{}
	if d.Critical > 0 {
		recs = append(recs, RecommendCritical)
	}
	if d.High > 0 {
		recs = append(recs, RecommendHigh)
	}
	if highRiskPages > 5 {
		recs = append(recs, RecommendMonitoring)
	}
	if d.Low > d.High+d.Critical {
		recs = append(recs, RecommendManageable)
	}
	return recs
}
