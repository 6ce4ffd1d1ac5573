package model

import "time"

// PageStatus is the outcome recorded on a fetched page.
type PageStatus string

// PageCrawled is the only status a stored page carries; failed fetches
// produce no page.
const PageCrawled PageStatus = "crawled"

// Page is the extracted content of one fetched link. It is created by the
// fetcher and never modified afterwards.
type Page struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	TextContent string     `json:"text_content"`
	Images      []string   `json:"images"`
	FetchedAt   time.Time  `json:"crawl_timestamp"`
	StoragePath string     `json:"file_path"`
	Status      PageStatus `json:"status"`
}
