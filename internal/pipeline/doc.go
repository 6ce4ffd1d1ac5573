// Package pipeline runs the stages of one crawl job in sequence.
//
// A job passes through discovery, link extraction, per-engine limiting and
// the fetch loop. Each stage is a Step that reads and updates the shared Run.
// Progress that callers observe while the job runs (link totals, fetched
// pages, failures) is reported through the Run's Recorder as it happens, so
// a job that fails halfway still shows everything fetched before the
// failure.
//
// A Step returning an error stops the pipeline. Per-link problems are not
// errors: the fetch step records them as failures and moves on.
package pipeline
