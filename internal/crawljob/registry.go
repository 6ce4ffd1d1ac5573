package crawljob

import (
	"sort"
	"sync"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

// entry is one job in the registry. The job's own task is its only writer.
type entry struct {
	mu  sync.RWMutex
	job model.Job
	seq uint64
}

func (e *entry) snapshot() model.Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job.Snapshot()
}

func (e *entry) update(now time.Time, fn func(j *model.Job)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	e.job.UpdatedAt = now
}

// transition moves the job to next if the lifecycle allows it.
func (e *entry) transition(now time.Time, next model.JobStatus, msg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.job.Status.CanTransition(next) {
		return false
	}
	e.job.Status = next
	e.job.UpdatedAt = now
	if msg != "" {
		e.job.ErrorMessage = msg
	}
	return true
}

// Registry is the set of jobs known to an Orchestrator. Create it once and
// pass it to the orchestrator; the zero value is not usable.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*entry
	seq  uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*entry)}
}

// findOrInsert returns the active entry for query if there is one.
// Otherwise it inserts the entry built by create. The lookup and insert
// happen under one lock, so concurrent submissions of a query agree.
func (r *Registry) findOrInsert(query string, create func() *entry) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.jobs {
		e.mu.RLock()
		match := e.job.Query == query && e.job.Status.Active()
		e.mu.RUnlock()
		if match {
			return e, false
		}
	}

	e := create()
	r.seq++
	e.seq = r.seq
	r.jobs[e.job.ID] = e
	return e, true
}

func (r *Registry) get(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	return e, ok
}

func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// snapshots returns copies of all jobs, newest first.
func (r *Registry) snapshots() []model.Job {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })

	jobs := make([]model.Job, len(entries))
	for i, e := range entries {
		jobs[i] = e.snapshot()
	}
	return jobs
}
