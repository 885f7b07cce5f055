package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// AttemptRepository is the append-only delivery attempt log. Attempt history
// lives in Postgres, not in-process, so a dispatcher crash never loses retry
// state.
type AttemptRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewAttemptRepository(db *dbpg.DB, strategy retry.Strategy) *AttemptRepository {
	return &AttemptRepository{db: db, strategy: strategy}
}

func (r *AttemptRepository) Record(ctx context.Context, attempt model.DeliveryAttempt) error {
	query := `INSERT INTO delivery_attempts (job_id, tenant_id, channel, attempt_number, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		attempt.JobID,
		attempt.TenantID,
		attempt.Channel.String(),
		attempt.AttemptNumber,
		string(attempt.Outcome),
		attempt.Reason,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("attempts: insert (%s, %s, #%d): %w", attempt.JobID, attempt.Channel, attempt.AttemptNumber, err)
	}
	return nil
}

func (r *AttemptRepository) History(ctx context.Context, jobID string) (map[model.Channel]model.ChannelState, error) {
	query := `SELECT DISTINCT ON (channel) channel, attempt_number, outcome, reason
		FROM delivery_attempts
		WHERE job_id = $1
		ORDER BY channel, attempt_number DESC`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("attempts: select history for %s: %w", jobID, err)
	}
	defer rows.Close()

	history := map[model.Channel]model.ChannelState{}
	for rows.Next() {
		var (
			rawChan string
			state   model.ChannelState
			reason  sql.NullString
		)
		if err := rows.Scan(&rawChan, &state.Attempts, &state.Outcome, &reason); err != nil {
			return nil, fmt.Errorf("attempts: scan history row: %w", err)
		}
		state.Reason = reason.String

		channel, err := model.ParseChannel(rawChan)
		if err != nil {
			zlog.Logger.Warn().Str("channel", rawChan).Str("job_id", jobID).Msg("skipping attempt row with unknown channel")
			continue
		}
		history[channel] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempts: iterate history: %w", err)
	}
	return history, nil
}
