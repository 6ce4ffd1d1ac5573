package discovery

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/nao1215/chhaya/internal/model"
)

// Limit keeps at most perEngineCap links per engine. Within an engine the
// first links in discovery order are kept, and the result preserves the
// overall input order. A cap of zero or less disables limiting.
//
// The discovery tool accepts a limit flag but does not reliably honor it,
// so every engine is capped here regardless of what the tool returned.
func Limit(links []model.Link, perEngineCap int) []model.Link {
	if perEngineCap <= 0 {
		return append([]model.Link(nil), links...)
	}

	kept := make(map[string]int)
	out := make([]model.Link, 0, len(links))
	for _, l := range links {
		if kept[l.Engine] >= perEngineCap {
			continue
		}
		kept[l.Engine]++
		out = append(out, l)
	}
	return out
}

// WriteLinks stores links as header-less engine,name,link rows, the same
// shape the discovery tool produces.
func WriteLinks(path string, links []model.Link) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // path is derived from the storage layout
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	for _, l := range links {
		if err := w.Write([]string{l.Engine, l.Title, l.URL}); err != nil {
			f.Close() //nolint:errcheck,gosec
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck,gosec
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
