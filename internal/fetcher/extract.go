package fetcher

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// invisibleElements never contribute text to a page.
const invisibleElements = "script, style, noscript, template"

// Limits bounds what Extract keeps from a document.
type Limits struct {
	// MaxTextLength is counted in runes. Zero or less keeps everything.
	MaxTextLength int
	// MaxImages caps the image references. Zero or less keeps everything.
	MaxImages int
}

// Content is the reduced form of an HTML document.
type Content struct {
	Title  string
	Text   string
	Images []string
}

// Extract parses an HTML document and reduces it to Content.
//
// The reader is decoded using the charset announced by contentType or the
// document's own meta tags. Visible text nodes are trimmed and joined with
// single spaces. Image sources are resolved against base in document order.
func Extract(r io.Reader, contentType string, base *url.URL, limits Limits) (Content, error) {
	decoded, err := charset.NewReader(r, contentType)
	if errors.Is(err, io.EOF) {
		// Empty body: nothing to sniff, still a valid page.
		return Content{Images: make([]string, 0)}, nil
	}
	if err != nil {
		return Content{}, fmt.Errorf("failed to detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return Content{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(invisibleElements).Remove()

	content := Content{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Text:   truncateRunes(visibleText(doc.Nodes), limits.MaxTextLength),
		Images: make([]string, 0),
	}

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limits.MaxImages > 0 && len(content.Images) >= limits.MaxImages {
			return false
		}
		src, _ := s.Attr("src")
		if src = strings.TrimSpace(src); src == "" {
			return true
		}
		content.Images = append(content.Images, resolve(base, src))
		return true
	})

	return content, nil
}

// visibleText collects every non-blank text node below roots.
func visibleText(roots []*html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range roots {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// resolve makes ref absolute against base. Unparseable references are
// kept verbatim.
func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
