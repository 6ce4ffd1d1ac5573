// Package aggregate merges the analysis report artifacts of a job into one
// verdict per page URL.
//
// Reports are processed newest first. For every URL the best verdict wins:
// a strictly higher score, or an equal score with a longer summary. On a
// full tie the verdict from the newer report stays, so the result does not
// depend on the order in which files happen to be read.
//
// When no report carries the job's id, the aggregator may fall back to every
// report in the reports area. That fallback is permissive: records of other
// jobs are returned as if they belonged to the requested one. Callers can
// tell from Result.Fallback and can disable it with FallbackNone.
package aggregate
