package model

import "time"

// JobBrief is the short form of a job used in activity listings.
type JobBrief struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Status       JobStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	CrawledLinks int       `json:"crawled_links"`
}

// Brief returns the short form of j.
func (j Job) Brief() JobBrief {
	return JobBrief{
		ID:           j.ID,
		Query:        j.Query,
		Status:       j.Status,
		CreatedAt:    j.CreatedAt,
		CrawledLinks: j.CrawledLinks,
	}
}

// Stats is an overview of all jobs known to the orchestrator.
type Stats struct {
	TotalJobs      int        `json:"total_crawls"`
	ActiveJobs     int        `json:"active_crawls"`
	CompletedJobs  int        `json:"completed_crawls"`
	FailedJobs     int        `json:"failed_crawls"`
	TotalPages     int        `json:"total_pages_crawled"`
	RecentActivity []JobBrief `json:"recent_activity"`
}
