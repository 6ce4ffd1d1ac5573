// Package discovery turns a search query into onion links.
//
// OnionSearch invokes the external onionsearch tool, which writes a CSV
// artifact. Extractor parses that artifact: it tolerates a missing header
// row, falls back from UTF-8 to Windows-1252, keeps only onion links, and
// deduplicates by URL. Limit then caps how many links each search engine
// contributes, because the tool's own limit flag cannot be trusted.
package discovery
