package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DAMG7250-Team1/reportgen/internal/report"
)

// JobStatus represents the state of a report job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one asynchronous report.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	Query string `json:"query"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	report *report.Report
	err    string
}

// NewJob returns a queued job for query.
func NewJob(query string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs idle for longer than the TTL. Queued and
// running jobs are kept.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.finished() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Complete stores the finished report.
func (j *Job) Complete(r *report.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report = r
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Fail records the user-facing failure message.
func (j *Job) Fail(phase, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = msg
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Report returns the finished report, nil until the job completes.
func (j *Job) Report() *report.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

func (j *Job) finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Query     string    `json:"query"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
	Degraded  int       `json:"degraded,omitempty"`
	Report    string    `json:"report,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state. Report holds the
// Markdown once the job has completed.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:        j.ID,
		Query:     j.Query,
		Status:    j.Status,
		Phase:     j.Phase,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Error:     j.err,
	}
	if j.report != nil {
		snap.Report = j.report.Markdown()
		snap.Degraded = j.report.Degraded
	}
	return snap
}
