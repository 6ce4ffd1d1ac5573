// Package model defines the data shared by chhaya's packages: crawl jobs
// and their lifecycle, discovered links, fetched pages, analyzer verdicts,
// and the summaries computed over them.
//
// Types here carry JSON tags matching the on-disk report format, so report
// artifacts written by one version can be aggregated by another.
package model
