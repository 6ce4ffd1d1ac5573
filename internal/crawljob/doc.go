// Package crawljob owns the lifecycle of crawl jobs.
//
// A Registry holds every job known to the process. The Orchestrator creates
// jobs, runs each one in its own goroutine through the step pipeline, and
// hands completed jobs with pages to the analyzer without waiting for it.
//
// Submitting a query that already has a pending or running job returns that
// job instead of starting a second one. Jobs move forward only:
// pending, in progress, then completed or failed.
package crawljob
