package repository

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// DeadLetterRepository stores per-channel terminal failures for operator
// inspection. Entries are never mutated after insert.
type DeadLetterRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewDeadLetterRepository(db *dbpg.DB, strategy retry.Strategy) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, strategy: strategy}
}

func (r *DeadLetterRepository) Add(ctx context.Context, entry model.DeadLetterEntry) error {
	query := `INSERT INTO dead_letters (job_id, tenant_id, channel, last_error, attempts, dead_lettered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id, channel) DO NOTHING`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		entry.JobID,
		entry.TenantID,
		entry.Channel.String(),
		entry.LastError,
		entry.Attempts,
		entry.DeadLetteredAt,
	)
	if err != nil {
		return fmt.Errorf("dead letters: insert (%s, %s): %w", entry.JobID, entry.Channel, err)
	}
	return nil
}

func (r *DeadLetterRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.DeadLetterEntry, error) {
	query := `SELECT job_id, tenant_id, channel, last_error, attempts, dead_lettered_at
		FROM dead_letters
		WHERE tenant_id = $1
		ORDER BY dead_lettered_at DESC
		LIMIT $2`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("dead letters: select for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var entries []model.DeadLetterEntry
	for rows.Next() {
		var (
			entry   model.DeadLetterEntry
			rawChan string
		)
		if err := rows.Scan(&entry.JobID, &entry.TenantID, &rawChan, &entry.LastError, &entry.Attempts, &entry.DeadLetteredAt); err != nil {
			return nil, fmt.Errorf("dead letters: scan row: %w", err)
		}
		entry.Channel = model.Channel(rawChan)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dead letters: iterate rows: %w", err)
	}
	return entries, nil
}
