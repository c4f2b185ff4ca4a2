// Package publisher durably records job state changes and forwards them to
// live listeners.
package publisher

import (
	"context"
	"errors"
	"log/slog"

	"transcription-service/internal/broker"
	"transcription-service/internal/models"
	"transcription-service/internal/store"
)

// Publisher is the single write path for job progress. Every update goes to
// the job store first (the durable source of truth), then to the broker for
// any live subscriber. Store failures, including the record having been
// deleted mid-processing, are logged and swallowed: a missed progress tick
// must never abort the pipeline.
type Publisher struct {
	store  store.JobStore
	broker *broker.Broker
	logger *slog.Logger
}

// New builds a publisher over the given store and broker.
func New(st store.JobStore, b *broker.Broker, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: st, broker: b, logger: logger}
}

// Publish records a non-terminal progress update.
func (p *Publisher) Publish(ctx context.Context, jobID string, progress int, message, status string) {
	if err := p.store.UpdateProgress(ctx, jobID, status, progress, message); err != nil {
		p.logProgressError(jobID, err)
	}
	p.broker.Forward(jobID, models.ProgressUpdate{
		Kind:     models.UpdateProgress,
		Progress: progress,
		Message:  message,
	})
}

// PublishResult finalizes a job as completed with its transcript.
func (p *Publisher) PublishResult(ctx context.Context, jobID string, result models.Result) {
	if err := p.store.MarkCompleted(ctx, jobID, result); err != nil {
		p.logProgressError(jobID, err)
	}
	p.broker.Forward(jobID, models.ProgressUpdate{
		Kind:     models.UpdateResult,
		Progress: 100,
		Result:   &result,
	})
}

// PublishError finalizes a job as failed.
func (p *Publisher) PublishError(ctx context.Context, jobID, message string) {
	if err := p.store.MarkFailed(ctx, jobID, message); err != nil {
		p.logProgressError(jobID, err)
	}
	p.broker.Forward(jobID, models.ProgressUpdate{
		Kind:    models.UpdateError,
		Message: message,
	})
}

func (p *Publisher) logProgressError(jobID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		// Owner deleted the job while it was processing; keep going.
		p.logger.Debug("publish to deleted job", "job_id", jobID)
		return
	}
	p.logger.Warn("store publish failed", "job_id", jobID, "error", err)
}
