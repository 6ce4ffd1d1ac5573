package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/chhaya/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. The risk distribution is rendered as a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *JobReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeHighRisk(md, report)
	w.writeKeywords(md, report)
	w.writeAnalyses(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *JobReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Job ID", "`" + report.JobID + "`"},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if job := report.Job; job != nil {
		rows = append(rows,
			[]string{"Query", job.Query},
			[]string{"Status", statusText(job)},
			[]string{"Links Found", strconv.Itoa(job.TotalLinks)},
			[]string{"Pages Crawled", strconv.Itoa(job.CrawledLinks)},
			[]string{"Pages Failed", strconv.Itoa(job.FailedLinks)},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Fallback {
		md.Note("No analysis report matched this job. Analyses from all stored reports are shown.")
		md.PlainText("")
	}
}

// statusText returns the status text of a job.
func statusText(job *model.Job) string {
	switch job.Status {
	case model.JobCompleted:
		return "✅ Completed"
	case model.JobFailed:
		return "❌ Failed - " + job.ErrorMessage
	default:
		return "⏳ " + displayName(string(job.Status))
	}
}

// writeSummary writes the risk distribution section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *JobReport) {
	md.H2("Risk Summary")
	md.PlainText("")

	if report.Summary == nil {
		md.PlainText("No analyses available.")
		md.PlainText("")
		return
	}

	d := report.Summary.RiskDistribution
	rows := make([][]string, 0, len(descendingLevels)+1)
	for _, level := range descendingLevels {
		rows = append(rows, []string{levelLabel(level), strconv.Itoa(d.Count(level))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.Summary.TotalPagesAnalyzed) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Risk", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Summary.TotalPagesAnalyzed > 0 {
		w.writePieChart(md, d)
	}
	w.writeAlert(md, d)

	if len(report.Summary.Recommendations) > 0 {
		md.H2("Recommendations")
		md.PlainText("")
		md.BulletList(report.Summary.Recommendations...)
		md.PlainText("")
	}
}

// levelLabel returns the table label of a risk level.
func levelLabel(level model.RiskLevel) string {
	var icon string
	switch level {
	case model.RiskCritical:
		icon = "🔴"
	case model.RiskHigh:
		icon = "🟠"
	case model.RiskMedium:
		icon = "🟡"
	default:
		icon = "🔵"
	}
	return icon + " " + displayName(level.String())
}

// writePieChart writes a mermaid pie chart for the risk distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, d model.RiskDistribution) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Risk Distribution"),
		piechart.WithShowData(true),
	)
	for _, level := range descendingLevels {
		if n := d.Count(level); n > 0 {
			chart.LabelAndIntValue(displayName(level.String()), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the most severe level present.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, d model.RiskDistribution) {
	switch {
	case d.Critical > 0:
		md.Cautionf("%d critical risk page(s) require immediate attention.", d.Critical)
	case d.High > 0:
		md.Warningf("%d high risk page(s) should be monitored closely.", d.High)
	case d.Medium > 0:
		md.Importantf("%d medium risk page(s) found.", d.Medium)
	default:
		md.Tip("Overall risk level appears manageable.")
	}
	md.PlainText("")
}

// writeHighRisk writes the high-risk page table.
func (w *MarkdownWriter) writeHighRisk(md *markdown.Markdown, report *JobReport) {
	if report.Summary == nil || len(report.Summary.HighRiskPages) == 0 {
		return
	}
	md.H2("High Risk Pages")
	md.PlainText("")

	rows := make([][]string, len(report.Summary.HighRiskPages))
	for i, p := range report.Summary.HighRiskPages {
		rows[i] = []string{
			truncateString(p.URL, 60),
			truncateString(orDash(p.Title), 40),
			strconv.Itoa(p.RiskScore),
			orDash(p.Category),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Score", "Category"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeKeywords writes the keyword ranking.
func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, report *JobReport) {
	if report.Summary == nil || len(report.Summary.TopKeywords) == 0 {
		return
	}
	md.H2("Top Keywords")
	md.PlainText("")

	rows := make([][]string, len(report.Summary.TopKeywords))
	for i, kw := range report.Summary.TopKeywords {
		rows[i] = []string{kw.Keyword, strconv.Itoa(kw.Frequency)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Frequency"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAnalyses writes every analysis grouped by risk level, most severe first.
func (w *MarkdownWriter) writeAnalyses(md *markdown.Markdown, report *JobReport) {
	if len(report.Analyses) == 0 {
		return
	}
	md.H2("Analyses")
	md.PlainText("")

	for _, level := range descendingLevels {
		var group []model.AnalysisRecord
		for _, a := range report.Analyses {
			if a.Risk.Level == level {
				group = append(group, a)
			}
		}
		if len(group) == 0 {
			continue
		}

		md.PlainText("### " + levelLabel(level))
		md.PlainText("")
		rows := make([][]string, len(group))
		for i, a := range group {
			rows[i] = []string{
				truncateString(a.URL, 60),
				strconv.Itoa(a.Risk.Score),
				orDash(a.Risk.Category),
				truncateString(orDash(a.Summary), 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Score", "Category", "Summary"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, a := range group {
			if a.ActionPlan != "" {
				md.Details(a.URL, a.ActionPlan)
			}
		}
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [chhaya](https://github.com/nao1215/chhaya)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
