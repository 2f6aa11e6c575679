package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"campus-crawler/pkg/crawler"
)

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job is a crawl run started through the run_crawl tool.
type Job struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	State        string    `json:"state,omitempty"`
	Visited      int       `json:"visited"`
	RoutesTotal  int       `json:"routes_total"`
	RoutesDone   int64     `json:"routes_done"`
	TotalRoutes  int       `json:"total_routes"`
	ErrorMessage string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background crawl jobs. At most one job is active at a
// time since every job drives the same crawl target.
type JobManager struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	active string
}

// NewJobManager creates an empty job manager
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// CreateJob registers a new pending job. When a job is already active it is
// returned instead, with created set to false.
func (m *JobManager) CreateJob() (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.jobs[m.active]; existing != nil && existing.Status.active() {
		return existing, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.active = job.ID
	return job, true
}

// GetJob returns a snapshot of the job, or nil when the id is unknown.
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// ActiveJob returns a snapshot of the pending or running job, if any.
func (m *JobManager) ActiveJob() *Job {
	m.mu.RLock()
	job := m.jobs[m.active]
	m.mu.RUnlock()
	if job == nil || !job.Status.active() {
		return nil
	}
	return m.GetJob(job.ID)
}

// UpdateStatus moves a job to status. Terminal statuses stamp CompletedAt and
// free the active slot; a job that is already terminal is left untouched.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.Status.active() {
		return
	}
	job.Status = status
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
	if !status.active() {
		job.CompletedAt = time.Now()
		job.cancel()
		if m.active == jobID {
			m.active = ""
		}
	}
}

// UpdateProgress copies the live run progress into the job.
func (m *JobManager) UpdateProgress(jobID string, p crawler.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.RunID = p.RunID
		job.State = string(p.State)
		job.Visited = p.Visited
		job.RoutesTotal = p.RoutesTotal
		job.RoutesDone = p.RoutesDone
	}
}

// Finish records the outcome fields of a finished run.
func (m *JobManager) Finish(jobID, runID, state string, totalRoutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		if runID != "" {
			job.RunID = runID
		}
		job.State = state
		job.TotalRoutes = totalRoutes
	}
}

// CancelJob cancels a pending or running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.RLock()
	job, exists := m.jobs[jobID]
	active := exists && job.Status.active()
	m.mu.RUnlock()
	if !active {
		return false
	}
	m.UpdateStatus(jobID, JobStatusCancelled, "")
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id, job := range m.jobs {
		if job.Status.active() {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.UpdateStatus(id, JobStatusCancelled, "")
	}
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context the job's crawl runs under.
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
