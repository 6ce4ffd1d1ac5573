package storage

import (
	"crypto/md5" //nolint:gosec // used for short, stable file names, not for security
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

// Permissions for created directories and files. Artifacts may contain
// personal data scraped from hidden services, so they are private.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// ReportPrefix starts the name of every analysis report artifact.
const ReportPrefix = "analysis_report_"

// reportTimeLayout is the timestamp format embedded in report names.
const reportTimeLayout = "20060102_150405"

// Layout is the on-disk artifact store rooted at one directory with three
// areas: pages/ for fetched pages, reports/ for analysis reports, and
// discovery/ for raw and limited discovery output.
type Layout struct {
	root string
}

// New returns a Layout rooted at root. Call Init before writing.
func New(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the root directory.
func (l *Layout) Root() string { return l.root }

// PagesDir holds one artifact per fetched page.
func (l *Layout) PagesDir() string { return filepath.Join(l.root, "pages") }

// ReportsDir holds one artifact per analysis batch.
func (l *Layout) ReportsDir() string { return filepath.Join(l.root, "reports") }

// DiscoveryDir holds discovery tool output.
func (l *Layout) DiscoveryDir() string { return filepath.Join(l.root, "discovery") }

// Init creates the three areas.
func (l *Layout) Init() error {
	for _, dir := range []string{l.PagesDir(), l.ReportsDir(), l.DiscoveryDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// PageFileName derives the artifact name for a page URL:
// "<hostname>_<first 8 hex digits of md5(url)>.txt". URLs without a
// hostname use "unknown".
func PageFileName(rawURL string) string {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	sum := md5.Sum([]byte(rawURL)) //nolint:gosec
	return host + "_" + hex.EncodeToString(sum[:])[:8] + ".txt"
}

// WritePage stores the normalized text artifact of a page and returns its path.
func (l *Layout) WritePage(rawURL, text string, images []string) (string, error) {
	var b strings.Builder
	b.WriteString("URL: " + rawURL + "\n\n")
	b.WriteString("Text Content:\n")
	b.WriteString(text + "\n\n")
	b.WriteString("Image Links:\n")
	for _, img := range images {
		b.WriteString(img + "\n")
	}

	path := filepath.Join(l.PagesDir(), PageFileName(rawURL))
	if err := os.WriteFile(path, []byte(b.String()), filePerm); err != nil {
		return "", fmt.Errorf("failed to write page artifact: %w", err)
	}
	return path, nil
}

var unsafeNameChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// SafeName makes s usable as part of a file name.
func SafeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "query"
	}
	return s
}

// DiscoveryPath returns the raw discovery output path for a job. The job
// id prefix keeps concurrent jobs for similar queries apart.
func (l *Layout) DiscoveryPath(query, jobID string) string {
	id := jobID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(l.DiscoveryDir(), "onionsearch_"+SafeName(query)+"_"+id+".csv")
}

// LimitedPath returns the per-engine-limited sibling of a discovery artifact.
func LimitedPath(discoveryPath string) string {
	return strings.TrimSuffix(discoveryPath, ".csv") + "_limited.csv"
}

// ReportName returns the artifact name for a job's report written at t.
func ReportName(jobID string, t time.Time) string {
	return ReportPrefix + jobID + "_" + t.Format(reportTimeLayout) + ".json"
}

// WriteReport stores report as indented JSON and returns its path. A
// numeric suffix is appended when a report of the same job was already
// written within the same second.
func (l *Layout) WriteReport(report model.AnalysisReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	base := strings.TrimSuffix(ReportName(report.CrawlID, report.Timestamp), ".json")
	for i := 0; ; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(l.ReportsDir(), name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //nolint:gosec // name is derived, not user input
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create report artifact: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close() //nolint:errcheck,gosec
			return "", fmt.Errorf("failed to write report artifact: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write report artifact: %w", err)
		}
		return path, nil
	}
}

// Artifact is a report file found in the reports area.
type Artifact struct {
	Path    string
	Name    string
	ModTime time.Time
}

// ListReports returns the report artifacts whose name starts with prefix,
// newest first by modification time. Ties are ordered by name, descending,
// so the embedded timestamp decides. A missing reports area yields no
// artifacts and no error.
func (l *Layout) ListReports(prefix string) ([]Artifact, error) {
	entries, err := os.ReadDir(l.ReportsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var out []Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{
			Path:    filepath.Join(l.ReportsDir(), name),
			Name:    name,
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// JobReportPrefix is the name prefix of every report written for jobID.
func JobReportPrefix(jobID string) string {
	return ReportPrefix + jobID + "_"
}

// ReadReport decodes a report artifact.
func ReadReport(path string) (model.AnalysisReport, error) {
	var r model.AnalysisReport
	data, err := os.ReadFile(path) //nolint:gosec // path comes from ListReports
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return r, nil
}
