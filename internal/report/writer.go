package report

import (
	"io"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/chhaya/internal/model"
)

// JobReport is everything rendered for one job. Job is nil when only the
// stored analysis reports are known, as with the report command.
type JobReport struct {
	JobID       string                 `json:"job_id"`
	Job         *model.Job             `json:"job,omitempty"`
	Analyses    []model.AnalysisRecord `json:"analyses"`
	Summary     *model.ReportSummary   `json:"summary,omitempty"`
	Fallback    bool                   `json:"fallback,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// NewJobReport builds a JobReport and computes the summary over analyses.
// job may be nil.
func NewJobReport(jobID string, job *model.Job, analyses []model.AnalysisRecord, now time.Time) *JobReport {
	r := &JobReport{
		JobID:       jobID,
		Job:         job,
		Analyses:    analyses,
		GeneratedAt: now,
	}
	if r.Analyses == nil {
		r.Analyses = []model.AnalysisRecord{}
	}
	if len(analyses) > 0 {
		s := model.Summarize(analyses, now)
		r.Summary = &s
	}
	return r
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *JobReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *JobReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// displayName turns a lower-case identifier such as a risk level or job
// status into a heading: "in_progress" becomes "In Progress".
func displayName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '_' {
			b[i] = ' '
		}
	}
	return cases.Title(language.English).String(string(b))
}

// descendingLevels lists risk levels from most to least severe.
var descendingLevels = []model.RiskLevel{model.RiskCritical, model.RiskHigh, model.RiskMedium, model.RiskLow}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
