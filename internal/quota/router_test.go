package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/repository"
)

type fakeCounters struct {
	counts map[string]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counts: map[string]int64{}}
}

func (f *fakeCounters) key(tenant string, ch model.Channel, bucket string) string {
	return tenant + "/" + ch.String() + "/" + bucket
}

func (f *fakeCounters) Count(_ context.Context, tenant string, ch model.Channel, bucket string) (int64, error) {
	return f.counts[f.key(tenant, ch, bucket)], nil
}

func (f *fakeCounters) Incr(_ context.Context, tenant string, ch model.Channel, bucket string, _ time.Duration) (int64, error) {
	f.counts[f.key(tenant, ch, bucket)]++
	return f.counts[f.key(tenant, ch, bucket)], nil
}

type fakeTiers struct {
	tiers map[string]string
}

func (f *fakeTiers) Resolve(context.Context, string, model.Channel) (*model.TenantChannelConfig, error) {
	panic("not used")
}

func (f *fakeTiers) PlanTier(_ context.Context, tenantID string) (string, error) {
	tier, ok := f.tiers[tenantID]
	if !ok {
		return "", repository.ErrTenantNotFound
	}
	return tier, nil
}

func newRouter(counters *fakeCounters) *Router {
	r := NewRouter(counters, &fakeTiers{tiers: map[string]string{"t-pro": "pro"}}, config.QuotaConfig{
		DefaultDailyCap: 2,
		TierCaps:        map[string]int64{"pro": 5},
	})
	r.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRouterDefersAtCap(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	r := newRouter(counters)

	for i := 0; i < 2; i++ {
		ok, err := r.CanAttemptManaged(ctx, "t-free", model.ChannelTelegram)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = r.RecordAttempt(ctx, "t-free", model.ChannelTelegram)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := r.CanAttemptManaged(ctx, "t-free", model.ChannelTelegram)
	require.NoError(t, err)
	require.False(t, ok, "third attempt of the day must be deferred")
}

func TestRouterRecordCatchesLostRace(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	r := newRouter(counters)

	// Another worker consumed the remaining quota between the check and the
	// increment.
	counters.counts["t-free/vk/20250314"] = 2

	ok, err := r.RecordAttempt(ctx, "t-free", model.ChannelVK)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRouterTierCapAndUnknownTenant(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	r := newRouter(counters)

	for i := 0; i < 5; i++ {
		ok, err := r.RecordAttempt(ctx, "t-pro", model.ChannelVideo)
		require.NoError(t, err)
		require.True(t, ok, "pro cap is 5, attempt %d must pass", i+1)
	}
	ok, err := r.RecordAttempt(ctx, "t-pro", model.ChannelVideo)
	require.NoError(t, err)
	require.False(t, ok)

	// Unknown tenants fall back to the default cap instead of erroring.
	ok, err = r.CanAttemptManaged(ctx, "t-ghost", model.ChannelVK)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRouterBucketRollover(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	r := newRouter(counters)

	for i := 0; i < 2; i++ {
		_, err := r.RecordAttempt(ctx, "t-free", model.ChannelTelegram)
		require.NoError(t, err)
	}
	ok, err := r.CanAttemptManaged(ctx, "t-free", model.ChannelTelegram)
	require.NoError(t, err)
	require.False(t, ok)

	// Next UTC day: counters live in a fresh bucket.
	r.now = func() time.Time { return time.Date(2025, 3, 15, 0, 0, 1, 0, time.UTC) }
	ok, err = r.CanAttemptManaged(ctx, "t-free", model.ChannelTelegram)
	require.NoError(t, err)
	require.True(t, ok)
}
