package discovery

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/tor"
)

// canonicalHeader is assumed when the artifact starts directly with data.
var canonicalHeader = []string{"engine", "name", "link"}

// encoding is one candidate text encoding for discovery artifacts.
type encoding struct {
	name   string
	decode func([]byte) (string, bool)
}

// encodings are tried in order; the first that decodes the whole file wins.
var encodings = []encoding{
	{name: "utf-8", decode: decodeUTF8},
	{name: "windows-1252", decode: decodeWindows1252},
}

func decodeUTF8(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	return strings.TrimPrefix(string(data), "\ufeff"), true
}

func decodeWindows1252(data []byte) (string, bool) {
	// charmap maps the five bytes Windows-1252 leaves undefined onto C1
	// control characters. Treat them as undecodable instead.
	for _, b := range data {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return "", false
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Extractor turns discovery tool output into links.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor logging to logger (slog.Default if nil).
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reads the artifact at path. See Parse.
func (e *Extractor) Extract(path string) ([]model.Link, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is produced by the discovery step
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery artifact: %w", err)
	}
	return e.Parse(data)
}

// Parse decodes a discovery artifact into unique onion links.
//
// The artifact is CSV with engine, name and link columns. When the first
// row's last field already holds an onion link the file has no header and
// the canonical one is assumed. Rows whose link lacks the onion marker are
// dropped. Links are unique by URL: a later row replaces the value of an
// earlier one with the same URL while keeping the earlier position.
func (e *Extractor) Parse(data []byte) ([]model.Link, error) {
	text, enc, ok := decode(data)
	if !ok {
		return nil, ErrArtifactUnreadable
	}

	records := readRecords(text)
	if len(records) == 0 {
		e.logger.Debug("discovery artifact is empty")
		return []model.Link{}, nil
	}

	header := canonicalHeader
	rows := records
	if first := records[0]; !tor.ContainsOnion(first[len(first)-1]) {
		header = first
		rows = records[1:]
	}
	cols := columnIndex(header)

	links := make([]model.Link, 0, len(rows))
	position := make(map[string]int, len(rows))
	for _, row := range rows {
		url := strings.TrimSpace(field(row, cols, "link"))
		if !tor.ContainsOnion(url) {
			continue
		}
		link := model.Link{
			URL:    url,
			Title:  strings.TrimSpace(field(row, cols, "name")),
			Engine: strings.TrimSpace(field(row, cols, "engine")),
		}
		if i, seen := position[url]; seen {
			links[i] = link
			continue
		}
		position[url] = len(links)
		links = append(links, link)
	}

	e.logger.Debug("extracted onion links", "count", len(links), "encoding", enc)
	return links, nil
}

func decode(data []byte) (string, string, bool) {
	for _, enc := range encodings {
		if text, ok := enc.decode(data); ok {
			return text, enc.name, true
		}
	}
	return "", "", false
}

// readRecords parses text leniently: rows of any width are accepted, and
// rows the CSV reader rejects are skipped rather than failing the file.
func readRecords(text string) [][]string {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return out
		}
		if len(rec) == 0 {
			continue
		}
		out = append(out, rec)
	}
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
