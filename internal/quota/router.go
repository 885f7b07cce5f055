package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
	"github.com/postline-app/PublishDispatcher/internal/repository"
)

// counterTTL keeps a counter alive well past its UTC date bucket; the bucket
// in the key does the actual scoping, the TTL only reclaims memory.
const counterTTL = 48 * time.Hour

// Router tracks the rolling daily per-tenant-per-channel send counters and
// decides whether managed delivery may be attempted. Hitting the cap is a
// deferral, not an error: the channel falls through to a manual-share
// fallback.
type Router struct {
	counters ports.QuotaCounterStore
	tiers    ports.ConfigResolver

	defaultCap int64
	tierCaps   map[string]int64

	now func() time.Time
}

func NewRouter(counters ports.QuotaCounterStore, tiers ports.ConfigResolver, cfg config.QuotaConfig) *Router {
	return &Router{
		counters:   counters,
		tiers:      tiers,
		defaultCap: cfg.DefaultDailyCap,
		tierCaps:   cfg.TierCaps,
		now:        time.Now,
	}
}

func (r *Router) CanAttemptManaged(ctx context.Context, tenantID string, channel model.Channel) (bool, error) {
	limit, err := r.capFor(ctx, tenantID)
	if err != nil {
		return false, err
	}
	count, err := r.counters.Count(ctx, tenantID, channel, r.bucket())
	if err != nil {
		return false, err
	}
	return count < limit, nil
}

func (r *Router) RecordAttempt(ctx context.Context, tenantID string, channel model.Channel) (bool, error) {
	limit, err := r.capFor(ctx, tenantID)
	if err != nil {
		return false, err
	}
	// The INCR is atomic, so a concurrent worker racing past the Count check
	// is caught here; the overshoot is left in place, it is harmless.
	n, err := r.counters.Incr(ctx, tenantID, channel, r.bucket(), counterTTL)
	if err != nil {
		return false, err
	}
	return n <= limit, nil
}

func (r *Router) capFor(ctx context.Context, tenantID string) (int64, error) {
	tier, err := r.tiers.PlanTier(ctx, tenantID)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return r.defaultCap, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: resolve plan tier for %s: %w", tenantID, err)
	}
	if limit, ok := r.tierCaps[strings.ToLower(tier)]; ok {
		return limit, nil
	}
	return r.defaultCap, nil
}

// bucket is the UTC date the counter lives in; rollover resets quotas.
func (r *Router) bucket() string {
	return r.now().UTC().Format("20060102")
}
