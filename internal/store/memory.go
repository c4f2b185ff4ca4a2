package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcription-service/internal/models"
)

// Memory is a mutex-guarded in-memory JobStore used when no Postgres DSN is
// configured. Not durable across restarts; local development only.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]models.Job
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]models.Job)}
}

func (m *Memory) CreateJob(_ context.Context, p CreateJobParams) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job := models.Job{
		ID:             uuid.New().String(),
		OwnerID:        p.OwnerID,
		SourceFileName: p.SourceFileName,
		Status:         models.StatusQueued,
		Options:        p.Options,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *Memory) GetJob(_ context.Context, id string) (models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return job, nil
}

func (m *Memory) ListJobsByOwner(_ context.Context, ownerID string, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []models.Job
	for _, job := range m.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *Memory) UpdateProgress(_ context.Context, id, status string, progress int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return nil
}

func (m *Memory) MarkCompleted(_ context.Context, id string, result models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = models.StatusCompleted
	job.Progress = 100
	job.Message = ""
	job.Result = &result
	job.Error = nil
	job.UpdatedAt = now
	job.CompletedAt = &now
	m.jobs[id] = job
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.StatusFailed
	job.Error = &message
	job.Result = nil
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return nil
}

func (m *Memory) UpdateTranscript(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != models.StatusCompleted || job.Result == nil {
		return ErrNoResult
	}
	copied := *job.Result
	copied.Text = text
	job.Result = &copied
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}
