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

// ResultRepository persists the aggregated per-channel job result. The
// synchronous submission path and GET /jobs/:id/result read from here.
type ResultRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewResultRepository(db *dbpg.DB, strategy retry.Strategy) *ResultRepository {
	return &ResultRepository{db: db, strategy: strategy}
}

func (r *ResultRepository) Save(ctx context.Context, result *model.JobResult) error {
	perChannel, err := json.Marshal(result.PerChannel)
	if err != nil {
		return fmt.Errorf("results: marshal per-channel outcomes: %w", err)
	}

	query := `INSERT INTO job_results (job_id, tenant_id, per_channel, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE SET
			per_channel = EXCLUDED.per_channel,
			completed_at = EXCLUDED.completed_at`

	_, err = r.db.ExecWithRetry(ctx, r.strategy, query, result.JobID, result.TenantID, perChannel, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("results: upsert %s: %w", result.JobID, err)
	}
	return nil
}

func (r *ResultRepository) Get(ctx context.Context, jobID string) (*model.JobResult, error) {
	query := `SELECT job_id, tenant_id, per_channel, completed_at
		FROM job_results
		WHERE job_id = $1`

	row, err := r.db.QueryRowWithRetry(ctx, r.strategy, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("results: select %s: %w", jobID, err)
	}

	var (
		result     model.JobResult
		perChannel []byte
	)
	err = row.Scan(&result.JobID, &result.TenantID, &perChannel, &result.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("results: scan %s: %w", jobID, err)
	}

	if err := json.Unmarshal(perChannel, &result.PerChannel); err != nil {
		return nil, fmt.Errorf("results: unmarshal per-channel outcomes: %w", err)
	}
	return &result, nil
}
