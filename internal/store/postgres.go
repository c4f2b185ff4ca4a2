package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"transcription-service/internal/models"
)

// Postgres persists jobs through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a pooled connection to Postgres.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateJob inserts a queued job row and returns it.
func (s *Postgres) CreateJob(ctx context.Context, p CreateJobParams) (models.Job, error) {
	optionsJSON, err := json.Marshal(p.Options)
	if err != nil {
		return models.Job{}, fmt.Errorf("marshal options: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, owner_id, source_file_name, status, progress, message, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $6, $6)
	`, id, p.OwnerID, p.SourceFileName, models.StatusQueued, optionsJSON, now)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}

	return models.Job{
		ID:             id,
		OwnerID:        p.OwnerID,
		SourceFileName: p.SourceFileName,
		Status:         models.StatusQueued,
		Options:        p.Options,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

const jobColumns = `id, owner_id, source_file_name, status, progress, message, options, result, error, created_at, updated_at, completed_at`

// GetJob fetches a job by id.
func (s *Postgres) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListJobsByOwner returns the most recent jobs for an owner, newest first.
func (s *Postgres) ListJobsByOwner(ctx context.Context, ownerID string, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress writes the current status, progress, and activity message.
// Progress never moves backwards within a job's lifetime.
func (s *Postgres) UpdateProgress(ctx context.Context, id, status string, progress int, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, progress = GREATEST(progress, $3), message = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, progress, message)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted finalizes a job with its result.
func (s *Postgres) MarkCompleted(ctx context.Context, id string, result models.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, progress = 100, message = '', result = $3, error = NULL, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1
	`, id, models.StatusCompleted, resultJSON)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed finalizes a job with a failure description.
func (s *Postgres) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, error = $3, result = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, models.StatusFailed, message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTranscript overwrites the stored result text in place without
// touching status or progress. Only completed jobs carry a result to edit.
func (s *Postgres) UpdateTranscript(ctx context.Context, id, text string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET result = jsonb_set(result, '{text}', to_jsonb($2::text)), updated_at = NOW()
		WHERE id = $1 AND status = $3 AND result IS NOT NULL
	`, id, text, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return ErrNoResult
	}
	return nil
}

// DeleteJob removes the job record.
func (s *Postgres) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.Job, error) {
	var (
		job         models.Job
		optionsJSON []byte
		resultJSON  []byte
		errText     pgtype.Text
		completedAt pgtype.Timestamptz
	)
	err := row.Scan(&job.ID, &job.OwnerID, &job.SourceFileName, &job.Status, &job.Progress,
		&job.Message, &optionsJSON, &resultJSON, &errText, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		return models.Job{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if len(resultJSON) > 0 {
		var result models.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return models.Job{}, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &result
	}
	if errText.Valid {
		job.Error = &errText.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}
