package store

import (
	"context"
	"errors"

	"transcription-service/internal/models"
)

// ErrNotFound is returned when a job id has no record, including jobs deleted
// while their pipeline is still running.
var ErrNotFound = errors.New("job not found")

// ErrNoResult is returned when a transcript edit targets a job that has not
// completed. Only a completed job carries a result to edit.
var ErrNoResult = errors.New("job has no transcript")

// CreateJobParams collects inputs required to insert a job.
type CreateJobParams struct {
	OwnerID        string
	SourceFileName string
	Options        models.Options
}

// JobStore is the durable record of job identity, status, progress, and
// result. The Postgres implementation is the production store; Memory backs
// local development and tests.
type JobStore interface {
	CreateJob(ctx context.Context, p CreateJobParams) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	ListJobsByOwner(ctx context.Context, ownerID string, limit int) ([]models.Job, error)
	UpdateProgress(ctx context.Context, id, status string, progress int, message string) error
	MarkCompleted(ctx context.Context, id string, result models.Result) error
	MarkFailed(ctx context.Context, id, message string) error
	UpdateTranscript(ctx context.Context, id, text string) error
	DeleteJob(ctx context.Context, id string) error
}
