package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// JobRepository records accepted jobs on the producer side, so callers can
// look a job up even before the dispatcher has touched it.
type JobRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewJobRepository(db *dbpg.DB, strategy retry.Strategy) *JobRepository {
	return &JobRepository{db: db, strategy: strategy}
}

func (r *JobRepository) Create(ctx context.Context, job *model.PublishJob) error {
	channels, err := json.Marshal(job.Channels)
	if err != nil {
		return fmt.Errorf("jobs: marshal channels: %w", err)
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("jobs: marshal payload: %w", err)
	}

	query := `INSERT INTO jobs (job_id, tenant_id, channels, template, payload, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecWithRetry(ctx, r.strategy, query,
		job.JobID,
		job.TenantID,
		channels,
		job.Template,
		payload,
		job.IdempotencyKey,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("jobs: insert %s: %w", job.JobID, err)
	}
	return nil
}

// GetByIdempotencyKey finds the job a (tenant, key) pair was first accepted
// under, so a resubmission maps back to the original job id.
func (r *JobRepository) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*model.PublishJob, error) {
	query := `SELECT job_id, tenant_id, channels, template, payload, idempotency_key, created_at
		FROM jobs
		WHERE tenant_id = $1 AND idempotency_key = $2
		ORDER BY created_at
		LIMIT 1`

	row, err := r.db.QueryRowWithRetry(ctx, r.strategy, query, tenantID, key)
	if err != nil {
		return nil, fmt.Errorf("jobs: select by key (%s, %s): %w", tenantID, key, err)
	}

	var (
		job      model.PublishJob
		channels []byte
		payload  []byte
	)
	err = row.Scan(&job.JobID, &job.TenantID, &channels, &job.Template, &payload, &job.IdempotencyKey, &job.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: scan by key (%s, %s): %w", tenantID, key, err)
	}

	if err := json.Unmarshal(channels, &job.Channels); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal channels for %s: %w", job.JobID, err)
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal payload for %s: %w", job.JobID, err)
	}
	return &job, nil
}
