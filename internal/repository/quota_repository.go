package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postline-app/PublishDispatcher/internal/model"
)

// QuotaRepository keeps the rolling daily counters under
// quota:{tenant}:{channel}:{bucket}. INCR is atomic in Redis, so concurrent
// dispatcher instances never double-count; the TTL makes counters vanish
// after the date-bucket rolls over.
type QuotaRepository struct {
	client *redis.Client
}

func NewQuotaRepository(client *redis.Client) *QuotaRepository {
	return &QuotaRepository{client: client}
}

func quotaKey(tenantID string, channel model.Channel, bucket string) string {
	return fmt.Sprintf("quota:%s:%s:%s", tenantID, channel, bucket)
}

func (r *QuotaRepository) Count(ctx context.Context, tenantID string, channel model.Channel, bucket string) (int64, error) {
	n, err := r.client.Get(ctx, quotaKey(tenantID, channel, bucket)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: read counter: %w", err)
	}
	return n, nil
}

func (r *QuotaRepository) Incr(ctx context.Context, tenantID string, channel model.Channel, bucket string, ttl time.Duration) (int64, error) {
	key := quotaKey(tenantID, channel, bucket)

	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("quota: increment counter: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("quota: set counter ttl: %w", err)
		}
	}
	return n, nil
}
