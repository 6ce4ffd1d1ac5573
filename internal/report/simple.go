package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/chhaya/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose adds per-page summaries and action plans.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *JobReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeJob(&sb, report.Job)
	w.writeRisk(&sb, report)
	w.writeHighRisk(&sb, report)
	w.writeKeywords(&sb, report)
	w.writeAnalyses(&sb, report)
	w.writeRecommendations(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the banner and report identity.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *JobReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CHHAYA CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Job ID:         %s\n", report.JobID)
	fmt.Fprintf(sb, "Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Fallback {
		sb.WriteString("Source:         FALLBACK (analyses from other jobs may be included)\n")
	}
	sb.WriteString("\n")
}

// writeJob writes the crawl counters. It is skipped when the job is unknown.
func (w *SimpleWriter) writeJob(sb *strings.Builder, job *model.Job) {
	if job == nil {
		return
	}
	section(sb, "CRAWL")

	fmt.Fprintf(sb, "  Query:          %s\n", job.Query)
	fmt.Fprintf(sb, "  Per-engine cap: %d\n", job.PerEngineLimit)
	switch job.Status {
	case model.JobFailed:
		fmt.Fprintf(sb, "  Status:         FAILED - %s\n", job.ErrorMessage)
	default:
		fmt.Fprintf(sb, "  Status:         %s\n", displayName(string(job.Status)))
	}
	fmt.Fprintf(sb, "  Links found:    %d\n", job.TotalLinks)
	fmt.Fprintf(sb, "  Pages crawled:  %d\n", job.CrawledLinks)
	fmt.Fprintf(sb, "  Pages failed:   %d\n", job.FailedLinks)
	sb.WriteString("\n")

	if w.verbose {
		for _, p := range job.Pages {
			fmt.Fprintf(sb, "  [+] %s\n", p.URL)
			if p.Title != "" {
				fmt.Fprintf(sb, "      Title: %s\n", p.Title)
			}
			fmt.Fprintf(sb, "      Saved: %s\n", p.StoragePath)
		}
		if len(job.Pages) > 0 {
			sb.WriteString("\n")
		}
	}
}

// writeRisk writes the risk distribution.
func (w *SimpleWriter) writeRisk(sb *strings.Builder, report *JobReport) {
	if report.Summary == nil {
		if w.showEmpty {
			section(sb, "RISK SUMMARY")
			sb.WriteString("  No analyses available\n\n")
		}
		return
	}
	section(sb, "RISK SUMMARY")

	d := report.Summary.RiskDistribution
	for _, level := range descendingLevels {
		fmt.Fprintf(sb, "  %-9s %d\n", strings.ToUpper(level.String())+":", d.Count(level))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d pages analyzed\n", report.Summary.TotalPagesAnalyzed)
	sb.WriteString("\n")
}

// writeHighRisk lists high and critical pages.
func (w *SimpleWriter) writeHighRisk(sb *strings.Builder, report *JobReport) {
	if report.Summary == nil || (len(report.Summary.HighRiskPages) == 0 && !w.showEmpty) {
		return
	}
	section(sb, "HIGH RISK PAGES")

	if len(report.Summary.HighRiskPages) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, p := range report.Summary.HighRiskPages {
		fmt.Fprintf(sb, "  [!!] %s (score %d, %s)\n", p.URL, p.RiskScore, p.Category)
		if p.Title != "" {
			fmt.Fprintf(sb, "       %s\n", p.Title)
		}
	}
	sb.WriteString("\n")
}

// writeKeywords writes the keyword ranking.
func (w *SimpleWriter) writeKeywords(sb *strings.Builder, report *JobReport) {
	if report.Summary == nil || (len(report.Summary.TopKeywords) == 0 && !w.showEmpty) {
		return
	}
	section(sb, "TOP KEYWORDS")

	if len(report.Summary.TopKeywords) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, kw := range report.Summary.TopKeywords {
		fmt.Fprintf(sb, "  %-30s %d\n", kw.Keyword, kw.Frequency)
	}
	sb.WriteString("\n")
}

// writeAnalyses writes one entry per analysis. Only in verbose mode.
func (w *SimpleWriter) writeAnalyses(sb *strings.Builder, report *JobReport) {
	if !w.verbose || len(report.Analyses) == 0 {
		return
	}
	section(sb, "ANALYSES")

	for _, a := range report.Analyses {
		fmt.Fprintf(sb, "[%s] %s\n", levelIndicator(a.Risk.Level), a.URL)
		fmt.Fprintf(sb, "  Risk:     %s (%d)\n", a.Risk.Level, a.Risk.Score)
		if a.Risk.Category != "" {
			fmt.Fprintf(sb, "  Category: %s\n", a.Risk.Category)
		}
		if a.Summary != "" {
			fmt.Fprintf(sb, "  Summary:  %s\n", a.Summary)
		}
		if a.ActionPlan != "" {
			fmt.Fprintf(sb, "  Action:   %s\n", a.ActionPlan)
		}
		sb.WriteString("\n")
	}
}

// writeRecommendations writes the summary recommendations.
func (w *SimpleWriter) writeRecommendations(sb *strings.Builder, report *JobReport) {
	if report.Summary == nil || len(report.Summary.Recommendations) == 0 {
		return
	}
	section(sb, "RECOMMENDATIONS")

	for _, r := range report.Summary.Recommendations {
		fmt.Fprintf(sb, "  * %s\n", r)
	}
	sb.WriteString("\n")
}

// levelIndicator returns a visual indicator for the risk level.
func levelIndicator(level model.RiskLevel) string {
	switch level {
	case model.RiskCritical:
		return "!!!"
	case model.RiskHigh:
		return "!!"
	case model.RiskMedium:
		return "!"
	case model.RiskLow:
		return "-"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by chhaya\n")
	sb.WriteString("https://github.com/nao1215/chhaya\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
