package model

import (
	"testing"
	"time"
)

func TestJobStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobPending, JobInProgress, true},
		{JobPending, JobFailed, true},
		{JobInProgress, JobCompleted, true},
		{JobInProgress, JobFailed, true},
		{JobInProgress, JobPending, false},
		{JobInProgress, JobInProgress, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobCompleted, false},
		{JobCompleted, JobInProgress, false},
		{JobPending, JobStatus("paused"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s.CanTransition(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStatusPredicates(t *testing.T) {
	t.Parallel()

	for _, s := range []JobStatus{JobPending, JobInProgress} {
		if !s.Active() || s.Terminal() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
	for _, s := range []JobStatus{JobCompleted, JobFailed} {
		if s.Active() || !s.Terminal() {
			t.Errorf("%s should be terminal and not active", s)
		}
	}
}

func TestJobSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Now()
	j := &Job{ID: "j1", Query: "q", Status: JobInProgress, CreatedAt: now, UpdatedAt: now}
	j.Pages = append(j.Pages, Page{URL: "http://a.onion"})

	snap := j.Snapshot()
	j.Pages = append(j.Pages, Page{URL: "http://b.onion"})
	j.Pages[0] = Page{URL: "http://changed.onion"}
	j.Status = JobCompleted

	if len(snap.Pages) != 1 || snap.Pages[0].URL != "http://a.onion" {
		t.Errorf("snapshot pages diverged with the original: %+v", snap.Pages)
	}
	if snap.Status != JobInProgress {
		t.Errorf("snapshot status = %s, want %s", snap.Status, JobInProgress)
	}

	brief := snap.Brief()
	if brief.ID != "j1" || brief.Query != "q" || brief.Status != JobInProgress {
		t.Errorf("unexpected brief: %+v", brief)
	}
}
