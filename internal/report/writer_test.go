package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(url string, level model.RiskLevel, score int, keywords ...string) model.AnalysisRecord {
	return model.AnalysisRecord{
		Title:      "Title of " + url,
		URL:        url,
		Summary:    "summary of " + url,
		Risk:       model.RiskAssessment{Score: score, Level: level, Category: "marketplace"},
		Keywords:   keywords,
		ActionPlan: "monitor " + url,
		AnalyzedAt: testNow,
	}
}

// createTestReport creates a report with sample data for testing.
func createTestReport() *JobReport {
	job := &model.Job{
		ID:             "job-1",
		Query:          "leaked database",
		PerEngineLimit: 5,
		Status:         model.JobCompleted,
		TotalLinks:     15,
		CrawledLinks:   2,
		FailedLinks:    1,
		Pages: []model.Page{
			{URL: "http://a.onion/", Title: "A", StoragePath: "/tmp/a.txt"},
			{URL: "http://b.onion/", Title: "B", StoragePath: "/tmp/b.txt"},
		},
	}
	analyses := []model.AnalysisRecord{
		testRecord("http://a.onion/", model.RiskCritical, 95, "dump", "credentials"),
		testRecord("http://b.onion/", model.RiskHigh, 75, "dump"),
		testRecord("http://c.onion/", model.RiskMedium, 50),
		testRecord("http://d.onion/", model.RiskLow, 10),
	}
	return NewJobReport("job-1", job, analyses, testNow)
}

func TestNewJobReport(t *testing.T) {
	t.Parallel()

	t.Run("computes summary", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		if r.Summary == nil {
			t.Fatal("expected summary")
		}
		if r.Summary.TotalPagesAnalyzed != 4 {
			t.Errorf("TotalPagesAnalyzed = %d, want 4", r.Summary.TotalPagesAnalyzed)
		}
		if r.Summary.RiskDistribution.Critical != 1 {
			t.Errorf("Critical = %d, want 1", r.Summary.RiskDistribution.Critical)
		}
	})

	t.Run("no analyses leaves summary nil", func(t *testing.T) {
		t.Parallel()

		r := NewJobReport("job-2", nil, nil, testNow)
		if r.Summary != nil {
			t.Error("expected nil summary")
		}
		if r.Analyses == nil {
			t.Error("expected empty, non-nil analyses")
		}
	})
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header and crawl counters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CHHAYA CRAWL REPORT",
			"Job ID:         job-1",
			"Query:          leaked database",
			"Status:         Completed",
			"Links found:    15",
			"Pages crawled:  2",
			"Pages failed:   1",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes risk sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"RISK SUMMARY",
			"CRITICAL: 1",
			"TOTAL:    4 pages analyzed",
			"HIGH RISK PAGES",
			"[!!] http://a.onion/ (score 95, marketplace)",
			"TOP KEYWORDS",
			"RECOMMENDATIONS",
			model.RecommendCritical,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "ANALYSES") {
			t.Error("analyses section should only appear in verbose mode")
		}
	})

	t.Run("verbose adds pages and analyses", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Saved: /tmp/a.txt", "ANALYSES", "[!!!] http://a.onion/", "[-] http://d.onion/", "Action:   monitor http://c.onion/"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("failed job shows error", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Job.Status = model.JobFailed
		r.Job.ErrorMessage = "discovery tool failed"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "FAILED - discovery tool failed") {
			t.Error("expected failure message")
		}
	})

	t.Run("fallback notice", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Fallback = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "FALLBACK") {
			t.Error("expected fallback notice")
		}
	})

	t.Run("empty sections", func(t *testing.T) {
		t.Parallel()

		r := NewJobReport("job-3", nil, nil, testNow)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "RISK SUMMARY") {
			t.Error("risk summary should be hidden without analyses")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No analyses available") {
			t.Error("expected empty risk summary with WithShowEmpty")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JobReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.JobID != "job-1" {
			t.Errorf("JobID = %q, want job-1", got.JobID)
		}
		if len(got.Analyses) != 4 {
			t.Errorf("len(Analyses) = %d, want 4", len(got.Analyses))
		}
		if got.Analyses[0].Risk.Level != model.RiskCritical {
			t.Errorf("first level = %v, want critical", got.Analyses[0].Risk.Level)
		}
		if !strings.Contains(buf.String(), `"level":"critical"`) {
			t.Error("expected risk level encoded by name")
		}
	})

	t.Run("trailing newline and indentation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.HasSuffix(output, "\n") {
			t.Error("expected trailing newline")
		}
		if !strings.Contains(output, "\n  \"job_id\": \"job-1\"") {
			t.Error("expected two-space indentation")
		}
	})

	t.Run("version envelope", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			Version string    `json:"version"`
			Report  JobReport `json:"report"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" || got.Report.JobID != "job-1" {
			t.Errorf("got version=%q job=%q", got.Version, got.Report.JobID)
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes full report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"job-1",
			"✅ Completed",
			"## Risk Summary",
			"🔴 Critical",
			"pie",
			"Risk Distribution",
			"[!CAUTION]",
			"## High Risk Pages",
			"## Top Keywords",
			"## Analyses",
			"monitor http://a.onion/",
			"chhaya",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("alert follows most severe level", func(t *testing.T) {
		t.Parallel()

		analyses := []model.AnalysisRecord{testRecord("http://b.onion/", model.RiskHigh, 80)}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(NewJobReport("job-4", nil, analyses, testNow)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert")
		}
		if strings.Contains(buf.String(), "[!CAUTION]") {
			t.Error("unexpected caution alert")
		}
	})

	t.Run("no analyses", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(NewJobReport("job-5", nil, nil, testNow)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No analyses available.") {
			t.Error("expected empty notice")
		}
		if strings.Contains(output, "pie") {
			t.Error("unexpected pie chart")
		}
	})

	t.Run("fallback note", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Fallback = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!NOTE]") {
			t.Error("expected fallback note")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*JobReport) (int, error) { return 0, errors.New("boom") }

// TestMultiWriter tests writing to multiple outputs.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := mw.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("writer after the failing one should not run")
		}
	})
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"critical", "Critical"},
		{"in_progress", "In Progress"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := displayName(tt.in); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short", input: "abc", maxLen: 10, want: "abc"},
		{name: "exact", input: "abcde", maxLen: 5, want: "abcde"},
		{name: "truncated", input: "abcdefghij", maxLen: 7, want: "abcd..."},
		{name: "tiny limit", input: "abcdef", maxLen: 2, want: "ab"},
		{name: "multibyte", input: "日本語のテキスト", maxLen: 5, want: "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
