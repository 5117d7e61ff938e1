package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/facemood/internal/enrollment"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const eventChannelBuffer = 100

// AuditJob represents an async near-duplicate audit.
type AuditJob struct {
	EventBroadcaster

	ID          string
	Status      JobStatus
	Neighbors   int
	Inspected   int
	Total       int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Pairs       []PairResult
}

// PairResult is one near-duplicate pair in audit responses.
type PairResult struct {
	First    IdentityResponse `json:"first"`
	Second   IdentityResponse `json:"second"`
	Distance float64          `json:"distance"`
}

func pairsToResponse(pairs []enrollment.DuplicatePair) []PairResult {
	result := make([]PairResult, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, PairResult{
			First:    identityToResponse(p.First),
			Second:   identityToResponse(p.Second),
			Distance: p.Distance,
		})
	}
	return result
}

// GetStatus returns the current job status (implements SSEJob).
func (j *AuditJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// AuditJobView is a point-in-time copy of an AuditJob used in responses.
type AuditJobView struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Neighbors   int          `json:"neighbors"`
	Inspected   int          `json:"inspected"`
	Total       int          `json:"total"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Pairs       []PairResult `json:"pairs,omitempty"`
}

// Snapshot returns a copy of the job that is safe to encode while the audit runs.
func (j *AuditJob) Snapshot() AuditJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return AuditJobView{
		ID:          j.ID,
		Status:      j.Status,
		Neighbors:   j.Neighbors,
		Inspected:   j.Inspected,
		Total:       j.Total,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Pairs:       j.Pairs,
	}
}

// Cancel cancels the audit job.
func (j *AuditJob) Cancel() {
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return
	}
	j.Status = JobStatusCancelled
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// setProgress records audit progress and notifies listeners.
func (j *AuditJob) setProgress(done, total int) {
	j.mu.Lock()
	j.Inspected = done
	j.Total = total
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "progress", Data: map[string]int{"inspected": done, "total": total}})
}

// finish moves the job to a terminal state unless it was already cancelled.
func (j *AuditJob) finish(pairs []enrollment.DuplicatePair, err error) {
	now := time.Now()
	j.mu.Lock()
	if j.Status == JobStatusCancelled {
		j.CompletedAt = &now
		j.mu.Unlock()
		return
	}
	j.CompletedAt = &now
	var event JobEvent
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		event = JobEvent{Type: "job_error", Message: j.Error}
	} else {
		j.Status = JobStatusCompleted
		j.Pairs = pairsToResponse(pairs)
		event = JobEvent{Type: "job_complete", Data: j.Pairs}
	}
	j.mu.Unlock()
	j.SendEvent(event)
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async audit jobs.
type JobManager struct {
	jobs map[string]*AuditJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AuditJob),
	}
}

// CreateJob registers a pending audit job.
func (m *JobManager) CreateJob(id string, neighbors int) *AuditJob {
	job := &AuditJob{
		ID:        id,
		Status:    JobStatusPending,
		Neighbors: neighbors,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *AuditJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*AuditJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*AuditJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
