package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// LedgerRepository is the Redis-backed idempotency ledger. Committed results
// live under idem:{tenant}:{key}; an in-flight reservation under the same key
// with a ":reserved" suffix. Reservation uses SETNX so that two workers
// holding redelivered copies of one message cannot both win.
type LedgerRepository struct {
	client         *redis.Client
	reservationTTL time.Duration
	pollInterval   time.Duration
}

func NewLedgerRepository(client *redis.Client, reservationTTL time.Duration) *LedgerRepository {
	return &LedgerRepository{
		client:         client,
		reservationTTL: reservationTTL,
		pollInterval:   200 * time.Millisecond,
	}
}

func resultKey(tenantID, key string) string {
	return fmt.Sprintf("idem:%s:%s", tenantID, key)
}

func reservationKey(tenantID, key string) string {
	return resultKey(tenantID, key) + ":reserved"
}

func (r *LedgerRepository) CheckOrReserve(ctx context.Context, tenantID, key string) (*model.JobResult, bool, error) {
	cached, err := r.getResult(ctx, tenantID, key)
	if err != nil {
		return nil, false, err
	}
	if cached != nil {
		return cached, false, nil
	}

	reserved, err := r.client.SetNX(ctx, reservationKey(tenantID, key), time.Now().UTC().Format(time.RFC3339Nano), r.reservationTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ledger: reserve key %q: %w", key, err)
	}
	return nil, reserved, nil
}

func (r *LedgerRepository) AwaitResult(ctx context.Context, tenantID, key string, wait time.Duration) (*model.JobResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		cached, err := r.getResult(ctx, tenantID, key)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *LedgerRepository) Commit(ctx context.Context, tenantID, key string, result *model.JobResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("ledger: marshal result: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, resultKey(tenantID, key), data, ttl)
	pipe.Del(ctx, reservationKey(tenantID, key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger: commit key %q: %w", key, err)
	}
	return nil
}

func (r *LedgerRepository) Release(ctx context.Context, tenantID, key string) error {
	if err := r.client.Del(ctx, reservationKey(tenantID, key)).Err(); err != nil {
		return fmt.Errorf("ledger: release key %q: %w", key, err)
	}
	return nil
}

func (r *LedgerRepository) getResult(ctx context.Context, tenantID, key string) (*model.JobResult, error) {
	data, err := r.client.Get(ctx, resultKey(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get key %q: %w", key, err)
	}

	var result model.JobResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal result for key %q: %w", key, err)
	}
	return &result, nil
}
