// Package jobs tracks crawl jobs and runs the worker loop that turns
// queued tasks into persisted records.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopcrawler/internal/queue"
)

var ErrJobNotFound = errors.New("job not found")

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one crawl request: a listing URL plus every product task derived
// from it.
type Job struct {
	ID             string     `json:"id"`
	ListingURL     string     `json:"listing_url"`
	Status         string     `json:"status"`
	CardsFound     int        `json:"cards_found"`
	ProductsQueued int        `json:"products_queued"`
	ProductsDone   int        `json:"products_done"`
	Failures       int        `json:"failures"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Manager keeps job state in memory and feeds the queue. Job state is
// per-process; results themselves live in the database.
type Manager struct {
	queue  taskQueue
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(q taskQueue, logger *slog.Logger) *Manager {
	return &Manager{
		queue:  q,
		logger: logger.With("component", "jobs"),
		jobs:   make(map[string]*Job),
	}
}

// CreateJob registers a job and enqueues its listing task.
func (m *Manager) CreateJob(ctx context.Context, listingURL string) (*Job, error) {
	job := &Job{
		ID:         uuid.New().String(),
		ListingURL: listingURL,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	task := &queue.Task{
		ID:    uuid.New().String(),
		JobID: job.ID,
		Kind:  queue.KindSearch,
		URL:   listingURL,
	}
	if err := m.queue.Push(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue listing task: %w", err)
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", job.ID, "url", listingURL)
	return job, nil
}

// GetJob returns a snapshot of one job.
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns all jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) update(jobID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}

func (m *Manager) markFailed(jobID string, err error) {
	now := time.Now()
	m.update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.LastError = err.Error()
		j.CompletedAt = &now
	})
}
