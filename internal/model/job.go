package model

import "time"

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

const (
	// JobPending is the state right after submission.
	JobPending JobStatus = "pending"

	// JobInProgress means discovery or fetching is running.
	JobInProgress JobStatus = "in_progress"

	// JobCompleted means the fetch loop finished. Individual links may
	// still have failed.
	JobCompleted JobStatus = "completed"

	// JobFailed means a pipeline-level step failed. Pages fetched before
	// the failure are kept.
	JobFailed JobStatus = "failed"
)

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 0
	case JobInProgress:
		return 1
	case JobCompleted, JobFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Active reports whether the job still blocks a new submission of the same query.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobInProgress
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic: forward only, and never out of a terminal state.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// Job is one crawl run for a single query.
//
// Once discovery has finished, CrawledLinks + FailedLinks never exceeds
// TotalLinks. TotalLinks counts the unique links extracted from discovery,
// before the per-engine cap is applied.
type Job struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	PerEngineLimit int       `json:"per_engine_limit"`
	Status         JobStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TotalLinks     int       `json:"total_links"`
	CrawledLinks   int       `json:"crawled_links"`
	FailedLinks    int       `json:"failed_links"`
	Pages          []Page    `json:"pages"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Snapshot returns a copy of j that shares no mutable state with it.
// Pages themselves are immutable, so only the slice is copied.
func (j *Job) Snapshot() Job {
	c := *j
	if j.Pages != nil {
		c.Pages = append([]Page(nil), j.Pages...)
	}
	return c
}
